package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"duorico/internal/auth"
	"duorico/internal/core"
	applog "duorico/internal/log"
	"duorico/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps service and domain errors onto status codes.
// Validation sentinels become 400, hidden or missing records 404.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrNotSeries):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrPartnerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrAlreadyPaired),
		errors.Is(err, auth.ErrNotPaired),
		errors.Is(err, auth.ErrSelfPairing):
		writeError(w, http.StatusConflict, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidType,
		core.ErrInvalidMonth,
		core.ErrInvalidYear,
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrEmptyCategory,
		core.ErrInvalidInstallments,
		core.ErrInconsistentSeries,
		services.ErrSharedWithoutCouple,
		auth.ErrInvalidEmail,
		auth.ErrMissingFullName,
		auth.ErrWeakPassword,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
