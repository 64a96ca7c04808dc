package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
)

// DeviceHandler handles device registration and approval endpoints.
type DeviceHandler struct {
	devices *services.DeviceService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ListAll handles GET /api/devices
func (h *DeviceHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	devices, err := h.devices.ListAll(r.Context(), auth)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, devices)
}

// List handles GET /api/projects/{name}/devices. The optional status query
// parameter narrows the listing to pending or authorized devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	devices, err := h.devices.List(r.Context(), auth, chi.URLParam(r, "name"), r.URL.Query().Get("status"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, devices)
}

// Register handles POST /api/projects/{name}/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	var req struct {
		DeviceID   string   `json:"device_id"`
		Name       string   `json:"name"`
		Tags       []string `json:"tags"`
		WorkingDir string   `json:"working_dir"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	registered, err := h.devices.Register(r.Context(), auth, chi.URLParam(r, "name"), services.RegisterRequest{
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		Tags:       req.Tags,
		WorkingDir: req.WorkingDir,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, registered)
}

// Get handles GET /api/projects/{name}/devices/{id}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	device, err := h.devices.Get(r.Context(), auth, chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, device)
}

// Authorize handles POST /api/projects/{name}/devices/{id}/authorize
func (h *DeviceHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	var req struct {
		AuthorizedBy string `json:"authorized_by"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AuthorizedBy == "" {
		req.AuthorizedBy = "api"
	}

	device, err := h.devices.Authorize(r.Context(), auth, chi.URLParam(r, "name"), chi.URLParam(r, "id"), req.AuthorizedBy)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, device)
}

// Delete handles DELETE /api/projects/{name}/devices/{id}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	if err := h.devices.Delete(r.Context(), auth, chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reject handles POST /api/projects/{name}/devices/{id}/reject
func (h *DeviceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	if err := h.devices.Reject(r.Context(), auth, chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/devices/status. It authenticates with the device
// token directly so a pending device can poll for its approval.
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	token := middleware.BearerToken(r)
	if deviceID == "" || token == "" {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "device_id and bearer token are required")
		return
	}

	device, err := h.devices.Status(r.Context(), deviceID, token)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, device)
}
