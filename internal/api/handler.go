// Package api provides HTTP handlers for the study API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/identity"
)

// maxBodyBytes caps request bodies; the largest form is the stage-1 survey.
const maxBodyBytes = 64 << 10

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// participantID prefers the id sent in the body, then the one resolved by
// identity.Middleware. A malformed id from either source is rejected rather
// than replaced by another source.
func participantID(r *http.Request, fromBody string) (string, error) {
	if strings.TrimSpace(fromBody) != "" {
		id, err := identity.Normalize(fromBody)
		if err != nil {
			return "", malformedID()
		}
		return id, nil
	}
	id, err := identity.ParticipantIDFromContext(r.Context())
	if err != nil {
		return "", malformedID()
	}
	return id, nil
}

func malformedID() error {
	return &domain.ValidationError{Field: "participant_id", Reason: "is malformed"}
}

// writeStudyError maps a study error to its HTTP response.
func writeStudyError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		Error(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrCeilingExceeded):
		Error(w, http.StatusBadRequest, "max_turns_reached")
	case errors.Is(err, domain.ErrPlanningRequired):
		Error(w, http.StatusPreconditionRequired, "planning_required")
	case errors.Is(err, domain.ErrPlanningNotRequired):
		Error(w, http.StatusConflict, "planning_not_required")
	case errors.Is(err, domain.ErrAlreadySubmitted):
		Error(w, http.StatusConflict, "already_submitted")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		Error(w, http.StatusConflict, "busy, please retry")
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	default:
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		Error(w, http.StatusInternalServerError, "internal error, please retry")
	}
}

// flattenAnswers turns a JSON answers object into raw form strings. Numbers
// keep their literal text; anything that is not a string or number becomes "".
func flattenAnswers(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			out[k] = n.String()
			continue
		}
		out[k] = ""
	}
	return out
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
