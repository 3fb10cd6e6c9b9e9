package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/raido/internal/apperr"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// decodeJSON decodes an optional request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type errResponse struct {
	Error   string           `json:"error" validate:"required"`
	Code    string           `json:"code,omitempty"`
	Details *MultiDayDetails `json:"details,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps the tracker error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidReference), errors.Is(err, apperr.ErrNoBaseDocumentSet):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrTodoNotFound), errors.Is(err, apperr.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrSessionAlreadyActive), errors.Is(err, apperr.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrMultiDayConfirmationRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrDocumentStore), errors.Is(err, apperr.ErrTimeLog):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errResponse{Error: err.Error(), Code: apperr.Category(err)}

	var md *apperr.MultiDayError
	if errors.As(err, &md) {
		body.Details = &MultiDayDetails{
			ElapsedSeconds: int64(md.Elapsed / time.Second),
			StartedAt:      md.StartedAt,
			EndedAt:        md.EndedAt,
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}
