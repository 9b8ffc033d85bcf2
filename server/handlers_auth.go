package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/webidscan/auth-server/auth"
	apperrors "github.com/webidscan/auth-server/internal/errors"
)

const (
	sessionCookieName = "sid"
	stateCookieName   = "oauthstate"
)

// loginPayload is the dual-mode login body: email+password for the local
// strategy, refreshToken for the refresh grant. The two modes are mutually
// exclusive and email never appears without a password.
type loginPayload struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refreshToken"`
}

func (p loginPayload) valid() bool {
	local := p.Email != "" && p.Password != ""
	refresh := p.RefreshToken != ""
	if refresh && (p.Email != "" || p.Password != "") {
		return false
	}
	return local != refresh
}

// LoginHandler issues a token pair from either credentials or a refresh
// token. A caller that is already authenticated gets turned away, matching
// the original endpoint's auth mode "try".
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tryAuthenticated(r) {
			respondError(w, apperrors.ErrAlreadyLoggedIn)
			return
		}

		var payload loginPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || !payload.valid() {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		var pair *auth.TokenPair
		var err error
		if payload.RefreshToken != "" {
			pair, err = s.auth.Refresh(r.Context(), payload.RefreshToken)
			if err != nil {
				s.metrics.RefreshFailure.Inc()
				respondError(w, err)
				return
			}
			s.metrics.RefreshSuccess.Inc()
		} else {
			pair, err = s.auth.Login(r.Context(), payload.Email, payload.Password)
			if err != nil {
				s.metrics.LoginFailure.Inc()
				respondError(w, err)
				return
			}
		}
		s.metrics.LoginSuccess.Inc()

		s.setSessionCookie(w, r, pair.SID)
		w.Header().Set("Authorization", "Bearer "+pair.AccessToken)
		respondJSON(w, http.StatusOK, pair)
	}
}

// LogoutHandler revokes the caller's session and redirects. The redirect
// target comes from the next query param and defaults to the site root.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		if err := s.auth.Logout(r.Context(), claims.SID); err != nil {
			respondError(w, err)
			return
		}
		s.metrics.Logouts.Inc()

		s.clearSessionCookie(w, r)
		next := r.URL.Query().Get("next")
		if next == "" {
			next = defaultLogoutRedirect
		}
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// ForgottenHandler starts the password reset flow. The answer is the same
// whether or not the account exists.
func (s *Server) ForgottenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Email == "" {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		baseURL := getScheme(r) + "://" + r.Host
		if err := s.auth.Forgotten(r.Context(), payload.Email, baseURL); err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Email is sent to %s (if that user exists)", payload.Email),
		})
	}
}

// ResetHandler consumes a reset token and sets the new password.
func (s *Server) ResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Token                string `json:"token"`
			Password             string `json:"password"`
			PasswordConfirmation string `json:"passwordConfirmation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
			payload.Token == "" || payload.Password == "" ||
			payload.Password != payload.PasswordConfirmation {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		if err := s.auth.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
			respondError(w, err)
			return
		}
		s.metrics.SessionsRevoked.Inc()

		respondJSON(w, http.StatusOK, map[string]string{"message": "Password has been changed"})
	}
}

// GoogleLoginHandler sends the browser to Google's consent screen. The
// state value round-trips through a short-lived cookie.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tryAuthenticated(r) {
			respondError(w, apperrors.ErrAlreadyLoggedIn)
			return
		}

		state := uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     RouteGoogleCallback,
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   getScheme(r) == "https",
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, s.googleOidc.OAuth2Config.AuthCodeURL(state), http.StatusFound)
	}
}

// googleClaims is the subset of the Google ID token this server reads.
type googleClaims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Surname   string `json:"family_name"`
	Picture   string `json:"picture"`
}

// GoogleCallbackHandler finishes the OAuth flow: state check, code
// exchange, ID-token verification, then the normal session issue path.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stateCookie, err := r.Cookie(stateCookieName)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			respondError(w, apperrors.ErrInvalidPayload)
			return
		}

		oauthToken, err := s.googleOidc.OAuth2Config.Exchange(r.Context(), code)
		if err != nil {
			s.log.Warn().Err(err).Msg("google code exchange failed")
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		rawIDToken, ok := oauthToken.Extra("id_token").(string)
		if !ok {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}
		idToken, err := s.googleOidc.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.log.Warn().Err(err).Msg("google id token rejected")
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		var gc googleClaims
		if err := idToken.Claims(&gc); err != nil {
			respondError(w, apperrors.ErrUnauthorized)
			return
		}

		pair, err := s.auth.LoginWithProfile(r.Context(), auth.OAuthProfile{
			ProviderID: gc.Subject,
			Email:      gc.Email,
			FirstName:  gc.GivenName,
			LastName:   gc.Surname,
			Image:      gc.Picture,
		})
		if err != nil {
			s.metrics.LoginFailure.Inc()
			respondError(w, err)
			return
		}
		s.metrics.LoginSuccess.Inc()

		s.setSessionCookie(w, r, pair.SID)
		w.Header().Set("Authorization", "Bearer "+pair.AccessToken)
		respondJSON(w, http.StatusOK, pair)
	}
}

// setSessionCookie mirrors the session id into a cookie for browser
// clients. API clients can ignore it; validation still goes through the
// bearer token.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    url.QueryEscape(sid),
		Path:     "/",
		MaxAge:   int(s.config.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}
