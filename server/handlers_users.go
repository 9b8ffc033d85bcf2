package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/webidscan/auth-server/auth"
	apperrors "github.com/webidscan/auth-server/internal/errors"
)

const defaultListLimit = 50

// RegisterHandler creates a local-strategy account.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			FirstName            string `json:"firstName"`
			LastName             string `json:"lastName"`
			Email                string `json:"email"`
			Password             string `json:"password"`
			PasswordConfirmation string `json:"passwordConfirmation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
			payload.FirstName == "" || payload.LastName == "" ||
			payload.Email == "" || payload.Password == "" ||
			payload.Password != payload.PasswordConfirmation {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		account, err := s.auth.Register(r.Context(), auth.RegisterInput{
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
			Email:     payload.Email,
			Password:  payload.Password,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, account)
	}
}

// ViewProfileHandler returns the caller's own account.
func (s *Server) ViewProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		account, err := s.auth.Profile(r.Context(), claims.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, account)
	}
}

// UpdateProfileHandler changes the caller's display name and image.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		var payload struct {
			Name  string `json:"name"`
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		account, err := s.auth.UpdateProfile(r.Context(), claims.ID, payload.Name, payload.Image)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, account)
	}
}

// UpdatePasswordHandler changes the caller's password. Other sessions stay
// live; only a reset revokes them.
func (s *Server) UpdatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		var payload struct {
			OldPassword          string `json:"oldPassword"`
			Password             string `json:"password"`
			PasswordConfirmation string `json:"passwordConfirmation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
			payload.OldPassword == "" || payload.Password == "" ||
			payload.Password != payload.PasswordConfirmation {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		if err := s.auth.ChangePassword(r.Context(), claims.ID, payload.OldPassword, payload.Password); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Password has been changed"})
	}
}

// ListUsersHandler pages through accounts. Admin scope only.
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultListLimit)

		accounts, err := s.auth.ListAccounts(r.Context(), offset, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, accounts)
	}
}

// DeactivateUserHandler soft-deletes an account and revokes every one of
// its sessions. Admin scope only.
func (s *Server) DeactivateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		if err := s.auth.Deactivate(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		s.metrics.SessionsRevoked.Inc()

		respondJSON(w, http.StatusOK, map[string]string{"message": "User deactivated"})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
