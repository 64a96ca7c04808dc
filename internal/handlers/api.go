// Package handlers wires the REST API surface to the service layer.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/olushako/vaulty/internal/services"
)

// maxRequestBodySize bounds decoded request bodies.
const maxRequestBodySize = 1 << 20

// Response helpers

type apiResponse struct {
	Data any `json:"data,omitempty"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Data: data})
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiError{}
	resp.Error.Code = code
	resp.Error.Message = message
	json.NewEncoder(w).Encode(resp)
}

// serviceError maps a service-layer error onto the API error envelope. The
// service layer classifies every failure; handlers only translate.
func serviceError(w http.ResponseWriter, err error) {
	switch services.KindOf(err) {
	case services.KindUnauthorized:
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case services.KindForbidden:
		jsonError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case services.KindNotFound:
		jsonError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case services.KindConflict:
		jsonError(w, http.StatusConflict, "CONFLICT", err.Error())
	case services.KindValidation:
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// decodeBody decodes a JSON request body into dst with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(dst); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return false
	}
	return true
}

// NotFoundHandler handles 404s for unmatched routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found")
}

// MethodNotAllowedHandler handles 405s.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The requested method is not allowed for this resource")
}
