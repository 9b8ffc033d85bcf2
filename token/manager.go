// Package token mints and verifies the signed claim sets issued at login.
// Access and refresh tokens carry the same claims and differ only in
// expiry: the refresh window extends the access window by a fixed margin.
// Both are HMAC-SHA-512 over the server secret. Reset-password tokens are
// a separate, shorter-lived HS256 claim set over their own secret.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	apperrors "github.com/webidscan/auth-server/internal/errors"
	"github.com/webidscan/auth-server/session"
)

// Claims is the wire claim set: {email, name, id, sid, scope, exp}.
type Claims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	ID    string   `json:"id"`
	SID   string   `json:"sid"`
	Scope []string `json:"scope"`
	jwt.RegisteredClaims
}

// ResetClaims is the reset-password claim set: {id, exp}.
type ResetClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret        []byte
	resetSecret   []byte
	accessExpiry  time.Duration
	refreshExtend time.Duration
	resetExpiry   time.Duration
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

// WithTokenExpiry sets the access-token lifetime and the extra margin the
// refresh token lives beyond it.
func WithTokenExpiry(accessExpiry, refreshExtend time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessExpiry = accessExpiry
		m.refreshExtend = refreshExtend
	}
}

func WithResetExpiry(resetExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.resetExpiry = resetExpiry
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(secret, resetSecret string, options ...ManagerOption) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("[token.New] signing secret is required")
	}
	if resetSecret == "" {
		return nil, errors.New("[token.New] reset secret is required")
	}

	m := &Manager{
		secret:        []byte(secret),
		resetSecret:   []byte(resetSecret),
		accessExpiry:  30 * time.Minute,
		refreshExtend: 15 * time.Minute,
		resetExpiry:   20 * time.Minute,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Issue signs an access/refresh pair over the session snapshot. The caller
// is responsible for having written the snapshot into the session store;
// tokens only reference it by sid.
func (m *Manager) Issue(snapshot session.Snapshot) (accessToken, refreshToken string, err error) {
	claims := Claims{
		Email: snapshot.Email,
		Name:  snapshot.Name,
		ID:    snapshot.AccountID,
		SID:   snapshot.ID,
		Scope: snapshot.Scope,
	}

	// Short session first
	claims.ExpiresAt = jwt.NewNumericDate(m.nowFunc().Add(m.accessExpiry))
	accessToken, err = jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		return "", "", errors.Wrap(err, "[Manager.Issue] sign access token")
	}

	// Refresh session - same claims, expiry pushed out further
	claims.ExpiresAt = jwt.NewNumericDate(claims.ExpiresAt.Add(m.refreshExtend))
	refreshToken, err = jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		return "", "", errors.Wrap(err, "[Manager.Issue] sign refresh token")
	}

	return accessToken, refreshToken, nil
}

// Validate verifies signature and algorithm first, then expiry. It does not
// consult the session store; that is the auth service's second step.
func (m *Manager) Validate(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS512 {
				return nil, apperrors.ErrInvalidSignature
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperrors.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, apperrors.ErrInvalidSignature):
			return nil, apperrors.ErrInvalidSignature
		default:
			return nil, apperrors.ErrInvalidToken
		}
	}

	if claims.SID == "" || claims.ID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return &claims, nil
}

// IssueReset signs a reset-password token for the account.
func (m *Manager) IssueReset(accountID string) (string, error) {
	claims := ResetClaims{
		ID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(m.nowFunc().Add(m.resetExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.resetSecret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.IssueReset] sign")
	}
	return signed, nil
}

// ValidateReset verifies a reset-password token and returns the account id.
func (m *Manager) ValidateReset(raw string) (string, error) {
	var claims ResetClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, apperrors.ErrInvalidSignature
			}
			return m.resetSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", apperrors.ErrTokenExpired
		default:
			return "", apperrors.ErrInvalidToken
		}
	}

	if claims.ID == "" {
		return "", apperrors.ErrInvalidToken
	}
	return claims.ID, nil
}
