package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pocketbook/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed request input, as opposed to domain
// validation failures.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses: not-found to 404,
// validation failures to 422, everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrPastDate),
		errors.Is(err, core.ErrPeriodMismatch),
		errors.Is(err, core.ErrNotesTooLong),
		errors.Is(err, core.ErrUnknownRecurrence),
		errors.Is(err, core.ErrStopBeforeAnchor),
		errors.Is(err, core.ErrNotRecurring),
		errors.Is(err, core.ErrEmptyCounterparty),
		errors.Is(err, core.ErrUnknownLoanType):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
