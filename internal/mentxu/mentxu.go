// Package mentxu defines the core domain types of the MentxuApp itinerary:
// stops, mobile users and the per-user progress ledger.
// It has zero external dependencies.
package mentxu

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrStopLocked   = errors.New("stop is locked")
	ErrConflict     = errors.New("concurrent modification")
	ErrDuplicate    = errors.New("duplicate")
)

// Invalid wraps ErrInvalidInput with a caller-facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Stop is a waypoint of the itinerary. Order is the 1-based sequence
// position; only its relative ordering matters.
type Stop struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ShortName   string  `json:"shortName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
	GameType    string  `json:"gameType"`
	Order       int     `json:"order"`
	ImageURL    *string `json:"imageUrl"`
}

// StopPatch carries the fields of a partial stop update. Nil fields are
// left untouched.
type StopPatch struct {
	Name        *string
	ShortName   *string
	Latitude    *float64
	Longitude   *float64
	Description *string
	GameType    *string
	Order       *int
	ImageURL    *string
}

func (p StopPatch) Apply(s *Stop) {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.ShortName != nil {
		s.ShortName = strings.TrimSpace(*p.ShortName)
	}
	if p.Latitude != nil {
		s.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		s.Longitude = *p.Longitude
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.GameType != nil {
		s.GameType = *p.GameType
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	if p.ImageURL != nil {
		if *p.ImageURL == "" {
			s.ImageURL = nil
		} else {
			url := *p.ImageURL
			s.ImageURL = &url
		}
	}
}

// Validate checks the invariants every stored stop must satisfy.
func (s Stop) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Invalid("name is required")
	}
	if s.Order < 1 {
		return Invalid("order must be a positive integer")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return Invalid("latitude must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return Invalid("longitude must be between -180 and 180")
	}
	return nil
}

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	RegisteredAt time.Time `json:"registeredAt"`
	DeviceID     *string   `json:"deviceId"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Status string

const (
	StatusLocked    Status = "locked"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Progress is the per-user, per-stop state record.
type Progress struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	StopID         int64      `json:"stopId"`
	Status         Status     `json:"status"`
	ActivatedAt    *time.Time `json:"activatedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	Score          int        `json:"score"`
	ElapsedSeconds *int       `json:"elapsedSeconds"`
	Attempts       int        `json:"attempts"`
}

// StopProgress is a ledger row joined with its stop.
type StopProgress struct {
	Progress
	Stop Stop `json:"stop"`
}

// Metrics holds gameplay metrics reported by the game client. Nil fields
// are not supplied and must be left unchanged.
type Metrics struct {
	Score          *int
	ElapsedSeconds *int
	Attempts       *int
}

func (m Metrics) Empty() bool {
	return m.Score == nil && m.ElapsedSeconds == nil && m.Attempts == nil
}

func (m Metrics) Validate() error {
	if m.ElapsedSeconds != nil && *m.ElapsedSeconds < 0 {
		return Invalid("elapsedSeconds must not be negative")
	}
	if m.Attempts != nil && *m.Attempts < 0 {
		return Invalid("attempts must not be negative")
	}
	return nil
}

func (m Metrics) Apply(p *Progress) {
	if m.Score != nil {
		p.Score = *m.Score
	}
	if m.ElapsedSeconds != nil {
		v := *m.ElapsedSeconds
		p.ElapsedSeconds = &v
	}
	if m.Attempts != nil {
		p.Attempts = *m.Attempts
	}
}

type StopStats struct {
	Stop               Stop `json:"stop"`
	Completed          int  `json:"completed"`
	Active             int  `json:"active"`
	AverageTimeSeconds int  `json:"averageTimeSeconds"`
}

type PopularStop struct {
	StopID    int64  `json:"stopId"`
	ShortName string `json:"shortName"`
	Completed int    `json:"completed"`
}

type SystemStats struct {
	TotalUsers      int          `json:"totalUsers"`
	TotalStops      int          `json:"totalStops"`
	TotalCompleted  int          `json:"totalCompleted"`
	TotalActive     int          `json:"totalActive"`
	MostPopularStop *PopularStop `json:"mostPopularStop"`
	UsersFinished   int          `json:"usersFinished"`
}

// StopCount is the number of completions recorded for one stop.
type StopCount struct {
	StopID    int64  `json:"stopId"`
	ShortName string `json:"shortName"`
	Order     int    `json:"order"`
	Completed int    `json:"completed"`
}

// Admin is a dashboard operator.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
}

type AdminSession struct {
	ID        string
	AdminID   int64
	Username  string
	ExpiresAt time.Time
}
