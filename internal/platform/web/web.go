package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/fault"
)

// Error is the web-layer error carried out of handlers.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Handler is a handler func that returns an error instead of writing it.
type Handler func(w http.ResponseWriter, r *http.Request) *Error

func (fn Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		log.Error().
			Err(err.Err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", err.Code).
			Msg(err.Message)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(err.Code)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
	}
}

// FromFault translates a domain error into a web error. Unrecognized errors
// become 500s with a generic message so internal details never leak.
func FromFault(err error, fallback string) *Error {
	var fe *fault.Error
	code := http.StatusInternalServerError
	message := fallback

	if errors.As(err, &fe) {
		message = fe.Message
		switch fe.Kind {
		case fault.KindNotFound:
			code = http.StatusNotFound
		case fault.KindForbidden:
			code = http.StatusForbidden
		case fault.KindConflict:
			code = http.StatusConflict
		case fault.KindInvalidInput:
			code = http.StatusUnprocessableEntity
		case fault.KindStorage:
			code = http.StatusBadGateway
		case fault.KindTransient:
			code = http.StatusServiceUnavailable
		default:
			code = http.StatusInternalServerError
			message = fallback
		}
	}

	return &Error{Code: code, Message: message, Err: err}
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) *Error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return &Error{Err: err, Code: http.StatusInternalServerError, Message: "Failed to encode response"}
	}
	return nil
}
