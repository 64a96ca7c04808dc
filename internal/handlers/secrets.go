package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
)

// SecretHandler handles secret endpoints, both the explicit project-named
// routes and the implicit routes used by project and device tokens.
type SecretHandler struct {
	secrets  *services.SecretService
	projects *services.ProjectService
}

// NewSecretHandler creates a new SecretHandler.
func NewSecretHandler(secrets *services.SecretService, projects *services.ProjectService) *SecretHandler {
	return &SecretHandler{secrets: secrets, projects: projects}
}

// projectName resolves the target project: the URL parameter when present,
// otherwise the project the credential is bound to.
func (h *SecretHandler) projectName(r *http.Request) (string, error) {
	if name := chi.URLParam(r, "name"); name != "" {
		return name, nil
	}
	project, err := h.projects.Resolve(r.Context(), middleware.GetAuth(r.Context()))
	if err != nil {
		return "", err
	}
	return project.Name, nil
}

// List handles GET /api/projects/{name}/secrets and GET /api/secrets
func (h *SecretHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	name, err := h.projectName(r)
	if err != nil {
		serviceError(w, err)
		return
	}

	metas, err := h.secrets.List(r.Context(), auth, name)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, metas)
}

// Export handles GET /api/projects/{name}/secrets/export and
// GET /api/secrets/export: every decrypted value in one map, for loading
// into process environments.
func (h *SecretHandler) Export(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	name, err := h.projectName(r)
	if err != nil {
		serviceError(w, err)
		return
	}

	values, err := h.secrets.GetAll(r.Context(), auth, name)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, values)
}

// Get handles GET /api/projects/{name}/secrets/{key} and GET /api/secrets/{key}
func (h *SecretHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	name, err := h.projectName(r)
	if err != nil {
		serviceError(w, err)
		return
	}

	secret, err := h.secrets.Get(r.Context(), auth, name, chi.URLParam(r, "key"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, secret)
}

// Set handles PUT /api/projects/{name}/secrets/{key} and PUT /api/secrets/{key}
func (h *SecretHandler) Set(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	name, err := h.projectName(r)
	if err != nil {
		serviceError(w, err)
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == "" {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Secret value is required")
		return
	}

	meta, err := h.secrets.Set(r.Context(), auth, name, chi.URLParam(r, "key"), req.Value)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, meta)
}

// Delete handles DELETE /api/projects/{name}/secrets/{key} and
// DELETE /api/secrets/{key}
func (h *SecretHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	name, err := h.projectName(r)
	if err != nil {
		serviceError(w, err)
		return
	}

	if err := h.secrets.Delete(r.Context(), auth, name, chi.URLParam(r, "key")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
