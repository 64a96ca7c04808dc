package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
)

// ActivityHandler handles activity log and dashboard endpoints.
type ActivityHandler struct {
	activity *services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// parseFilter builds an activity filter from query parameters.
func parseFilter(r *http.Request) services.Filter {
	q := r.URL.Query()

	filter := services.Filter{
		Method:         q.Get("method"),
		Source:         q.Get("source"),
		Breakdown:      q.Get("breakdown"),
		BreakdownValue: q.Get("breakdown_value"),
		ExposedOnly:    q.Get("exposed_only") == "true",
		ExcludeUI:      q.Get("exclude_ui") == "true",
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = v
	}
	if hours, err := strconv.Atoi(q.Get("hours")); err == nil && hours > 0 {
		filter.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}
	return filter
}

// List handles GET /api/activities
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	page, err := h.activity.List(r.Context(), auth, parseFilter(r))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Recent handles GET /api/activities/recent: the newest records with no
// filtering beyond the default window.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	page, err := h.activity.List(r.Context(), auth, services.Filter{Limit: limit})
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, page.Activities)
}

// ListForProject handles GET /api/projects/{name}/activities
func (h *ActivityHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	filter := parseFilter(r)
	filter.Breakdown = "project"
	filter.BreakdownValue = chi.URLParam(r, "name")

	page, err := h.activity.List(r.Context(), auth, filter)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// FlushForProject handles DELETE /api/projects/{name}/activities
func (h *ActivityHandler) FlushForProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	n, err := h.activity.FlushProject(r.Context(), auth, chi.URLParam(r, "name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": n})
}

// FlushAll handles DELETE /api/activities
func (h *ActivityHandler) FlushAll(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	n, err := h.activity.FlushAll(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": n})
}

// Stats handles GET /api/activities/stats
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	stats, err := h.activity.DailyStats(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Dashboard handles GET /api/dashboard/stats
func (h *ActivityHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	stats, err := h.activity.Dashboard(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// DailyStats handles GET /api/dashboard/daily-stats
func (h *ActivityHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	stats, err := h.activity.DailyStats(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// ProjectStats handles GET /api/dashboard/project-stats
func (h *ActivityHandler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	stats, err := h.activity.PerProjectStats(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
