package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/idempotency"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, idempotency.ErrInFlight):
		return "conflict"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "invalid_state", "conflict":
		return http.StatusConflict
	case "storage":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorResponse(w, r, h.logger, err)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, fallback observability.Logger, err error) {
	kind := errorKind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status >= 500 {
		observability.LoggerFromContext(r.Context(), fallback).WithError(err).Error("request failed")
		if kind == "internal" {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: kind})
}
