package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/webidscan/auth-server/auth"
	"github.com/webidscan/auth-server/internal/config"
	"github.com/webidscan/auth-server/mailer"
	"github.com/webidscan/auth-server/server"
	"github.com/webidscan/auth-server/session/memstore"
	"github.com/webidscan/auth-server/token"
	"github.com/webidscan/auth-server/users"
	fakeuserrepo "github.com/webidscan/auth-server/users/repofake"
)

type testServer struct {
	srv  *server.Server
	repo *fakeuserrepo.FakeUserRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env: "TEST",
		Auth: config.AuthConfig{
			JWTSecret:       "test-signing-secret",
			ResetSecret:     "test-reset-secret",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenExt: 15 * time.Minute,
			ResetTokenTTL:   20 * time.Minute,
		},
		Session: config.SessionConfig{TTL: 45 * time.Minute},
		Rate: config.RateConfig{
			LoginPathLimit:     10,
			ForgottenPathLimit: 5,
			Window:             time.Minute,
		},
	}

	tokens, err := token.New(cfg.Auth.JWTSecret, cfg.Auth.ResetSecret)
	require.NoError(t, err)

	repo := fakeuserrepo.NewFakeUserRepo()
	authService, err := auth.NewService(
		auth.Repos{Users: repo, Sessions: memstore.New()},
		tokens, mailer.NewLogMailer(zerolog.Nop()), zerolog.Nop(),
	)
	require.NoError(t, err)

	srv, err := server.New(cfg, authService, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return &testServer{srv: srv, repo: repo}
}

func (ts *testServer) createAccount(t *testing.T, email, password string, scope users.Scope) *users.Account {
	t.Helper()
	hash, err := users.HashPassword(password)
	require.NoError(t, err)

	account := &users.Account{
		Email:        email,
		PasswordHash: &hash,
		Name:         "Test User",
		Scope:        scope,
		IsActive:     true,
	}
	require.NoError(t, ts.repo.Create(context.Background(), account))
	return account
}

func (ts *testServer) do(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair.AccessToken, pair.RefreshToken
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, rec.Code, body.StatusCode)
	return body.Message
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)

	t.Run("success returns the pair and the bearer header", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "Str0ngPass",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var pair struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "Bearer "+pair.AccessToken, rec.Header().Get("Authorization"))

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		require.Equal(t, "sid", cookies[0].Name)
		require.True(t, cookies[0].HttpOnly)
	})

	t.Run("wrong password and unknown email answer identically", func(t *testing.T) {
		wrong := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "WrongPass1",
		})
		unknown := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "Str0ngPass",
		})
		require.Equal(t, http.StatusBadRequest, wrong.Code)
		require.Equal(t, http.StatusBadRequest, unknown.Code)
		require.Equal(t, "Sorry, wrong email or password", errorMessage(t, wrong))
		require.Equal(t, errorMessage(t, wrong), errorMessage(t, unknown))
	})

	t.Run("malformed payloads", func(t *testing.T) {
		for name, payload := range map[string]map[string]string{
			"empty":                    {},
			"email without password":   {"email": "alice@example.com"},
			"password without email":   {"password": "Str0ngPass"},
			"both modes at once":       {"email": "alice@example.com", "password": "Str0ngPass", "refreshToken": "x"},
			"refresh beside the email": {"email": "alice@example.com", "refreshToken": "x"},
		} {
			rec := ts.do(t, http.MethodPost, "/auth/login", "", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code, name)
		}
	})

	t.Run("already authenticated callers are turned away", func(t *testing.T) {
		access, _ := ts.login(t, "alice@example.com", "Str0ngPass")

		rec := ts.do(t, http.MethodPost, "/auth/login", access, map[string]string{
			"email": "alice@example.com", "password": "Str0ngPass",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "Already logged in !", errorMessage(t, rec))
	})
}

func TestRefreshGrant(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)
	access, refresh := ts.login(t, "alice@example.com", "Str0ngPass")

	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fresh))
	require.NotEqual(t, access, fresh.AccessToken)

	t.Run("replayed refresh token is rejected", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"refreshToken": refresh})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("the old access token died with its session", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users/me", access, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"refreshToken": "garbage"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)

	t.Run("requires authentication", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/auth/logout", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("redirects and kills the session", func(t *testing.T) {
		access, _ := ts.login(t, "alice@example.com", "Str0ngPass")

		rec := ts.do(t, http.MethodGet, "/auth/logout", access, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))

		replay := ts.do(t, http.MethodGet, "/users/me", access, nil)
		require.Equal(t, http.StatusUnauthorized, replay.Code)
	})

	t.Run("honours the next param", func(t *testing.T) {
		access, _ := ts.login(t, "alice@example.com", "Str0ngPass")

		rec := ts.do(t, http.MethodGet, "/auth/logout?next=/goodbye", access, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/goodbye", rec.Header().Get("Location"))
	})
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)

	var last *httptest.ResponseRecorder
	for i := 0; i < 10; i++ {
		last = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "WrongPass1",
		})
		require.Equal(t, http.StatusBadRequest, last.Code)
		require.Equal(t, "10", last.Header().Get("X-RateLimit-PathLimit"))
		require.Equal(t, fmt.Sprint(10-(i+1)), last.Header().Get("X-RateLimit-PathRemaining"))
	}

	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Str0ngPass",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "10", rec.Header().Get("X-RateLimit-PathLimit"))
	require.Equal(t, "-1", rec.Header().Get("X-RateLimit-PathRemaining"))
}

func TestRegistrationEndpoint(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]string{
		"firstName":            "Alice",
		"lastName":             "Smith",
		"email":                "alice@example.com",
		"password":             "Str0ngPass",
		"passwordConfirmation": "Str0ngPass",
	}

	t.Run("creates the account", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/users", "", payload)
		require.Equal(t, http.StatusCreated, rec.Code)

		var account users.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
		require.Equal(t, "alice@example.com", account.Email)
		require.Equal(t, "Alice Smith", account.Name)
		require.NotContains(t, rec.Body.String(), "Str0ngPass")

		_, _ = ts.login(t, "alice@example.com", "Str0ngPass")
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/users", "", payload)
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "Email already in use.", errorMessage(t, rec))
	})

	t.Run("password confirmation mismatch", func(t *testing.T) {
		bad := map[string]string{
			"firstName": "Bob", "lastName": "Jones",
			"email": "bob@example.com", "password": "Str0ngPass",
			"passwordConfirmation": "Different1",
		}
		rec := ts.do(t, http.MethodPost, "/users", "", bad)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		bad := map[string]string{
			"firstName": "Bob", "lastName": "Jones",
			"email": "bob@example.com", "password": "weak",
			"passwordConfirmation": "weak",
		}
		rec := ts.do(t, http.MethodPost, "/users", "", bad)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProfileEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)
	access, _ := ts.login(t, "alice@example.com", "Str0ngPass")

	t.Run("view own profile", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users/me", access, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var account users.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
		require.Equal(t, "alice@example.com", account.Email)
	})

	t.Run("update profile", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/users/me", access, map[string]string{
			"name": "Alice Renamed",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var account users.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
		require.Equal(t, "Alice Renamed", account.Name)
	})

	t.Run("change password", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/users/me/password", access, map[string]string{
			"oldPassword":          "Str0ngPass",
			"password":             "N3wStrongPass",
			"passwordConfirmation": "N3wStrongPass",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		_, _ = ts.login(t, "alice@example.com", "N3wStrongPass")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "admin@example.com", "Str0ngPass", users.ScopeAdmin)
	target := ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)

	adminAccess, _ := ts.login(t, "admin@example.com", "Str0ngPass")
	userAccess, _ := ts.login(t, "alice@example.com", "Str0ngPass")

	t.Run("list is admin only", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users", userAccess, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodGet, "/users", adminAccess, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var accounts []users.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
		require.Len(t, accounts, 2)
	})

	t.Run("deactivation revokes the target's live sessions", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/users/"+target.ID, adminAccess, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		replay := ts.do(t, http.MethodGet, "/users/me", userAccess, nil)
		require.Equal(t, http.StatusUnauthorized, replay.Code)

		login := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "Str0ngPass",
		})
		require.Equal(t, http.StatusBadRequest, login.Code)
	})

	t.Run("ordinary users cannot deactivate", func(t *testing.T) {
		other := ts.createAccount(t, "bob@example.com", "Str0ngPass", users.ScopeUser)
		bobAccess, _ := ts.login(t, "bob@example.com", "Str0ngPass")

		rec := ts.do(t, http.MethodDelete, "/users/"+other.ID, bobAccess, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestForgottenEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice@example.com", "Str0ngPass", users.ScopeUser)

	t.Run("known and unknown emails answer identically", func(t *testing.T) {
		known := ts.do(t, http.MethodPost, "/auth/forgotten", "", map[string]string{"email": "alice@example.com"})
		unknown := ts.do(t, http.MethodPost, "/auth/forgotten", "", map[string]string{"email": "nobody@example.com"})
		require.Equal(t, http.StatusOK, known.Code)
		require.Equal(t, http.StatusOK, unknown.Code)
		require.Contains(t, known.Body.String(), "alice@example.com")
		require.Contains(t, known.Body.String(), "if that user exists")
	})

	t.Run("rate limited at its own threshold", func(t *testing.T) {
		// Two requests already spent above.
		for i := 0; i < 3; i++ {
			rec := ts.do(t, http.MethodPost, "/auth/forgotten", "", map[string]string{"email": "a@b.c"})
			require.Equal(t, http.StatusOK, rec.Code)
		}
		rec := ts.do(t, http.MethodPost, "/auth/forgotten", "", map[string]string{"email": "a@b.c"})
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "5", rec.Header().Get("X-RateLimit-PathLimit"))
		require.Equal(t, "-1", rec.Header().Get("X-RateLimit-PathRemaining"))
	})
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
