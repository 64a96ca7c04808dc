package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
)

// TokenHandler handles master and project token endpoints. The raw token
// appears exactly once, in the creation or rotation response.
type TokenHandler struct {
	tokens *services.TokenService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokens *services.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Master tokens

// ListMaster handles GET /api/master-tokens
func (h *TokenHandler) ListMaster(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	tokens, err := h.tokens.ListMasterTokens(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, tokens)
}

// CreateMaster handles POST /api/master-tokens
func (h *TokenHandler) CreateMaster(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	created, err := h.tokens.CreateMasterToken(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// RevokeMaster handles DELETE /api/master-tokens/{id}
func (h *TokenHandler) RevokeMaster(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	if err := h.tokens.RevokeMasterToken(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateMaster handles POST /api/master-tokens/{id}/rotate
func (h *TokenHandler) RotateMaster(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	rotated, err := h.tokens.RotateMasterToken(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rotated)
}

// Project tokens

// ListProject handles GET /api/projects/{name}/tokens
func (h *TokenHandler) ListProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	tokens, err := h.tokens.ListProjectTokens(r.Context(), auth, chi.URLParam(r, "name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, tokens)
}

// CreateProject handles POST /api/projects/{name}/tokens
func (h *TokenHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	created, err := h.tokens.CreateProjectToken(r.Context(), auth, chi.URLParam(r, "name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// RevokeProject handles DELETE /api/tokens/{id}
func (h *TokenHandler) RevokeProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	if err := h.tokens.RevokeProjectToken(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateProject handles POST /api/tokens/{id}/rotate
func (h *TokenHandler) RotateProject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	rotated, err := h.tokens.RotateProjectToken(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rotated)
}
