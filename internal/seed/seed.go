// Package seed loads the stop itinerary from YAML and installs it into an
// empty database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mentxuapp/backend/internal/mentxu"
)

//go:embed stops.yaml
var defaultStops []byte

type stopDoc struct {
	Order       int     `yaml:"order"`
	Name        string  `yaml:"name"`
	ShortName   string  `yaml:"shortName"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	GameType    string  `yaml:"gameType"`
	Description string  `yaml:"description"`
	ImageURL    string  `yaml:"imageUrl"`
}

// Default returns the built-in itinerary.
func Default() ([]mentxu.Stop, error) {
	return Parse(defaultStops)
}

// LoadFile reads an itinerary from a YAML file.
func LoadFile(path string) ([]mentxu.Stop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML list of stops and validates each entry. Orders must
// be unique.
func Parse(raw []byte) ([]mentxu.Stop, error) {
	var docs []stopDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decoding stops: %w", err)
	}

	seen := make(map[int]bool, len(docs))
	stops := make([]mentxu.Stop, 0, len(docs))
	for i, d := range docs {
		s := mentxu.Stop{
			Name:        d.Name,
			ShortName:   d.ShortName,
			Latitude:    d.Latitude,
			Longitude:   d.Longitude,
			Description: d.Description,
			GameType:    d.GameType,
			Order:       d.Order,
		}
		if d.ImageURL != "" {
			url := d.ImageURL
			s.ImageURL = &url
		}
		if s.ShortName == "" {
			s.ShortName = s.Name
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("stop %d: %w", i+1, err)
		}
		if seen[s.Order] {
			return nil, fmt.Errorf("stop %d: %w", i+1, mentxu.Invalid("duplicate order %d", s.Order))
		}
		seen[s.Order] = true
		stops = append(stops, s)
	}
	return stops, nil
}

type Counter interface {
	CountStops(ctx context.Context) (int, error)
}

type Adder interface {
	AddStop(ctx context.Context, s mentxu.Stop) (mentxu.Stop, error)
}

// Apply adds stops when no stop exists yet. It reports how many stops were
// created.
func Apply(ctx context.Context, c Counter, a Adder, stops []mentxu.Stop) (int, error) {
	n, err := c.CountStops(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting stops: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, s := range stops {
		if _, err := a.AddStop(ctx, s); err != nil {
			return i, fmt.Errorf("adding stop %q: %w", s.Name, err)
		}
	}
	return len(stops), nil
}
