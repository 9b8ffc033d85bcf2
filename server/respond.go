package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/webidscan/auth-server/internal/errors"
)

// errorBody mirrors the Boom response shape of the original API:
// {statusCode, error, message}.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		message = "An internal server error occurred"
	}
	respondJSON(w, status, errorBody{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

func statusForError(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidCredentials),
		apperrors.Is(err, apperrors.ErrInvalidPayload),
		apperrors.Is(err, apperrors.ErrWeakPassword):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrInvalidSignature),
		apperrors.Is(err, apperrors.ErrTokenExpired),
		apperrors.Is(err, apperrors.ErrInvalidToken),
		apperrors.Is(err, apperrors.ErrSessionExpired),
		apperrors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrForbidden),
		apperrors.Is(err, apperrors.ErrAlreadyLoggedIn):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrNotFound),
		apperrors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrEmailTaken):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
