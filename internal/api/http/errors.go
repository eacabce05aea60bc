package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/logger"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorStatuses = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrBusy, http.StatusConflict, "busy"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidPercentage, http.StatusUnprocessableEntity, "invalid_percentage"},
	{domain.ErrMissingJustification, http.StatusUnprocessableEntity, "missing_justification"},
	{domain.ErrMissingComment, http.StatusUnprocessableEntity, "missing_comment"},
	{domain.ErrDueDateTooFar, http.StatusUnprocessableEntity, "due_date_too_far"},
	{domain.ErrInvalidRequest, http.StatusUnprocessableEntity, "invalid_request"},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{context.Canceled, http.StatusRequestTimeout, "cancelled"},
}

// writeError maps an engine error onto a status code and JSON body.
func writeError(w http.ResponseWriter, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			if e.target == domain.ErrBusy {
				w.Header().Set("Retry-After", "1")
			}
			writeErrorCode(w, e.status, e.code, err.Error())
			return
		}
	}
	logger.Error("Unhandled API error", "error", err)
	writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}
