package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List handles GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	projects, err := h.projects.List(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, projects)
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	var req struct {
		Name                 string   `json:"name"`
		Description          string   `json:"description"`
		AutoApprovalPatterns []string `json:"auto_approval_patterns"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.projects.Create(r.Context(), auth, req.Name, req.Description, req.AutoApprovalPatterns)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, project)
}

// Get handles GET /api/projects/{name}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	project, err := h.projects.Get(r.Context(), auth, chi.URLParam(r, "name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

// Update handles PATCH /api/projects/{name}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	var req struct {
		Description          *string   `json:"description"`
		AutoApprovalPatterns *[]string `json:"auto_approval_patterns"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.projects.Update(r.Context(), auth, chi.URLParam(r, "name"), services.ProjectUpdate{
		Description:          req.Description,
		AutoApprovalPatterns: req.AutoApprovalPatterns,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{name}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	if err := h.projects.Delete(r.Context(), auth, chi.URLParam(r, "name")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
