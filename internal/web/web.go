package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pairchat/internal/apperr"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ExposeInternalErrors controls whether 500 responses carry the underlying
// error text. Off in production.
var ExposeInternalErrors = false

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// Error writes err as {"error": "..."} with the status its kind maps to.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	msg := apperr.Message(err)

	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		if ExposeInternalErrors {
			msg = err.Error()
		} else {
			msg = "Internal server error"
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	JSON(w, status, map[string]string{"error": msg})
}

// MaxBodyBytes caps every request body. It fits a message at its maximum
// content length even when every byte arrives \u-escaped.
const MaxBodyBytes = 64 << 10

var ErrBodyTooLarge = apperr.New(apperr.Validation, "request body too large")

// Decode reads a JSON body into dst, reporting a validation error on failure.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return bodyError(err)
	}
	return nil
}

// ReadBody returns the raw request body, bounded by MaxBodyBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, bodyError(err)
	}
	return b, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return apperr.Wrap(apperr.Validation, "invalid JSON body", err)
}
