package server

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/mentxuapp/backend/internal/handler/health"
	"github.com/mentxuapp/backend/internal/mentxu"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type idPath struct {
	ID int64 `path:"id"`
}

type stopUpdate struct {
	idPath
	StopRequest
}

type metricsUpdate struct {
	idPath
	MetricsRequest
}

type userListQuery struct {
	Limit  int `query:"limit" default:"50" maximum:"200"`
	Offset int `query:"offset" default:"0"`
}

type imageUpload struct {
	idPath
	Image *multipart.FileHeader `formData:"image"`
}

type op struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "MentxuApp API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Backend API for the MentxuApp itinerary: stops, mobile users and their progress.")

	const adminNote = " Requires admin_session cookie."

	ops := []op{
		{http.MethodGet, "/healthz", "Health check", "Returns the health status of backend dependencies.",
			nil, health.Response{}, http.StatusOK, nil},

		{http.MethodGet, "/api/stops", "List stops", "Returns all stops ordered by itinerary position.",
			nil, []mentxu.Stop{}, http.StatusOK, nil},
		{http.MethodGet, "/api/stops/{id}", "Get stop", "Returns one stop.",
			idPath{}, mentxu.Stop{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/api/stops", "Create stop", "Creates a stop and adds it to every user's ledger." + adminNote,
			StopRequest{}, mentxu.Stop{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict}},
		{http.MethodPut, "/api/stops/{id}", "Update stop", "Updates only the supplied fields." + adminNote,
			stopUpdate{}, mentxu.Stop{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict}},
		{http.MethodDelete, "/api/stops/{id}", "Delete stop", "Deletes a stop and its progress rows." + adminNote,
			idPath{}, MessageResponse{}, http.StatusOK, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodPost, "/api/stops/{id}/image", "Upload stop image", "Uploads a multipart image and stores its public URL on the stop." + adminNote,
			imageUpload{}, mentxu.Stop{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusServiceUnavailable}},
		{http.MethodGet, "/api/stops/{id}/stats", "Stop statistics", "Completed and active counts and mean completion time for a stop.",
			idPath{}, mentxu.StopStats{}, http.StatusOK, []int{http.StatusNotFound}},

		{http.MethodPost, "/api/users/register", "Register user", "Registers a mobile user and initialises the ledger. A known device id returns the existing user with 200.",
			RegisterRequest{}, RegisterResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusTooManyRequests}},
		{http.MethodGet, "/api/users", "List users", "Returns users newest first. Total count in X-Total-Count." + adminNote,
			userListQuery{}, []mentxu.User{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized}},
		{http.MethodGet, "/api/users/{id}", "Get user", "Returns one user.",
			idPath{}, mentxu.User{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodDelete, "/api/users/{id}", "Delete user", "Deletes a user and its ledger." + adminNote,
			idPath{}, MessageResponse{}, http.StatusOK, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodGet, "/api/users/{id}/progress", "User progress", "Returns the user's ledger joined with stops, in itinerary order.",
			idPath{}, UserProgressResponse{}, http.StatusOK, []int{http.StatusNotFound}},

		{http.MethodPost, "/api/progress/complete", "Complete stop", "Completes the user's active stop and unlocks the next one. Completing an already completed stop is a no-op.",
			CompleteRequest{}, CompleteResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
		{http.MethodPut, "/api/progress/{id}", "Update metrics", "Overwrites the supplied score, elapsed time and attempts. Never changes status.",
			metricsUpdate{}, mentxu.Progress{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/api/stats", "System statistics", "Itinerary-wide totals.",
			nil, mentxu.SystemStats{}, http.StatusOK, nil},

		{http.MethodPost, "/api/admin/login", "Admin login", "Authenticate with username and password. Sets admin_session cookie.",
			AdminLoginRequest{}, AdminMeResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized}},
		{http.MethodPost, "/api/admin/logout", "Admin logout", "Clears admin session and cookie.",
			nil, nil, http.StatusOK, nil},
		{http.MethodGet, "/api/admin/me", "Current admin", "Returns the currently authenticated admin." + adminNote,
			nil, AdminMeResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
		{http.MethodGet, "/api/admin/dashboard", "Dashboard", "Totals, most recent users and per-stop completions." + adminNote,
			nil, DashboardResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
		{http.MethodGet, "/api/admin/config", "Dashboard config", "Client configuration for the dashboard." + adminNote,
			nil, AdminConfigResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
	}

	for _, o := range ops {
		oc, err := r.NewOperationContext(o.method, o.path)
		if err != nil {
			continue
		}
		oc.SetSummary(o.summary)
		oc.SetDescription(o.description)
		if o.req != nil {
			oc.AddReqStructure(o.req)
		}
		oc.AddRespStructure(o.resp, openapi.WithHTTPStatus(o.status))
		for _, status := range o.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
