package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/apperr"
)

const maxRequestBody = 1 << 20 // 1 MiB

const sessionCookie = "session"

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type fieldDetails struct {
	Field string `json:"field"`
}

// credential returns the bearer token, falling back to the session cookie.
func credential(r *http.Request) string {
	const prefix = "Bearer "
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, prefix))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("request body must contain a single JSON object")

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body exceeds 1 MiB", nil)
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload", nil)
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("Invalid value for field %s", typeError.Field), fieldDetails{Field: typeError.Field})
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty", nil)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("Unknown field %s", field), fieldDetails{Field: field})
	default:
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unable to parse request body", nil)
	}
}

// respondAppError maps a failure kind onto its status, code and message.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	message := ""
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch apperr.KindOf(err) {
	case apperr.Unauthenticated:
		s.respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", orDefault(message, "Please sign in first"), nil)
	case apperr.Forbidden:
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", orDefault(message, "You are not allowed to do this"), nil)
	case apperr.InvalidInput:
		field := apperr.FieldOf(err)
		var details interface{}
		if field != "" {
			details = fieldDetails{Field: field}
			message = field + " " + message
		}
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", orDefault(message, "Invalid request"), details)
	case apperr.NotFound:
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", orDefault(message, "Resource not found"), nil)
	case apperr.Conflict:
		s.respondError(w, http.StatusConflict, "CONFLICT", orDefault(message, "Resource already exists"), nil)
	case apperr.TransientFailure:
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, "TRANSIENT_FAILURE", orDefault(message, "Please try again"), nil)
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "The server could not complete the request", nil)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
