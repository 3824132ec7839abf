package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"smflab/internal/conflict"
	"smflab/internal/listing"
	"smflab/internal/models"
	"smflab/internal/repository"
	"smflab/internal/service"
	"smflab/internal/workflow"
	"smflab/shared/access"
)

// Error codes used in the error envelope.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeForbidden   = "FORBIDDEN"
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION"
	CodeUnavailable = "UNAVAILABLE"
	CodeConflict    = "CONCURRENT_MODIFICATION"
	CodeArchived    = "ARCHIVED"
	CodeInternal    = "INTERNAL"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Conflicts []conflict.Conflict `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorEnvelope{Error: APIError{Code: code, Message: message}})
}

var validationErrors = []error{
	models.ErrInvalidDate,
	models.ErrInvertedRange,
	models.ErrPartialRange,
	models.ErrUnknownBlockType,
	workflow.ErrUnknownStep,
	workflow.ErrInvalidValue,
	workflow.ErrDerivedStep,
	service.ErrDatesRequired,
	listing.ErrUnknownSortOrder,
	repository.ErrDuplicateCode,
}

// writeServiceError maps domain errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *service.UnavailableError
	switch {
	case access.IsDenied(err):
		writeError(w, http.StatusForbidden, CodeForbidden, err.Error())
		return
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
		return
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, ErrorEnvelope{Error: APIError{
			Code:      CodeUnavailable,
			Message:   err.Error(),
			Conflicts: unavailable.Result.Conflicts,
		}})
		return
	case errors.Is(err, repository.ErrConcurrentModification):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
		return
	case errors.Is(err, repository.ErrArchived):
		writeError(w, http.StatusConflict, CodeArchived, err.Error())
		return
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
			return
		}
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", RequestIDFromContext(r.Context())).Msg("request failed")
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
