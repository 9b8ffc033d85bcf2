// Package auth is the core of the server: credential verification, token
// issuance backed by the session store, validation, refresh, and
// revocation. Handlers talk to this service; it talks to capabilities
// passed in at construction. Nothing here touches HTTP.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/webidscan/auth-server/internal/errors"
	"github.com/webidscan/auth-server/mailer"
	"github.com/webidscan/auth-server/session"
	"github.com/webidscan/auth-server/token"
	"github.com/webidscan/auth-server/users"
)

// TokenPair is the login/refresh response body. SID is for transport-level
// bookkeeping (the session cookie) and never serializes.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SID          string `json:"-"`
}

// Repos holds the capability dependencies for the Service.
type Repos struct {
	Users    users.Repo    // durable account records
	Sessions session.Store // ephemeral session snapshots
}

// Service implements the authentication flows.
type Service struct {
	repos      Repos
	tokens     *token.Manager
	mail       mailer.Mailer
	log        zerolog.Logger
	sessionTTL time.Duration
	nowTime    func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithSessionTTL overrides the server-side session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// NewService initializes the auth Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, mail mailer.Mailer, log zerolog.Logger, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if mail == nil {
		return nil, errors.New("[NewService] mailer is required")
	}

	s := &Service{
		repos:      repos,
		tokens:     tokens,
		mail:       mail,
		log:        log,
		sessionTTL: 45 * time.Minute,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login verifies email/password and issues a token pair. The failure is the
// same for an unknown email, an inactive account, an OAuth-only account,
// and a wrong password, so responses never reveal whether an account
// exists.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.repos.Users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !account.IsActive || !account.HasPassword() {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !users.CheckPasswordHash(password, *account.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.authenticate(ctx, account)
}

// authenticate writes a fresh session and signs a pair over it. Ordering
// matters: the session must exist before the tokens referencing it do.
func (s *Service) authenticate(ctx context.Context, account *users.Account) (*TokenPair, error) {
	snapshot := session.Snapshot{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Scope:     []string{string(account.Scope)},
		CreatedAt: s.nowTime(),
	}

	if err := s.repos.Sessions.Put(ctx, snapshot.ID, snapshot, s.sessionTTL); err != nil {
		return nil, errors.Wrap(err, "[Service.authenticate] Sessions.Put")
	}

	accessToken, refreshToken, err := s.tokens.Issue(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.authenticate] tokens.Issue")
	}

	s.log.Info().Str("account_id", account.ID).Str("sid", snapshot.ID).Msg("session created")
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, SID: snapshot.ID}, nil
}

// Validate checks a bearer token: signature/algorithm, then expiry, then
// that the session it references is still live. Session absence surfaces
// as ErrSessionExpired regardless of cause.
func (s *Service) Validate(ctx context.Context, rawToken string) (*token.Claims, error) {
	claims, err := s.tokens.Validate(rawToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.Sessions.Get(ctx, claims.SID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.ErrSessionExpired
		}
		return nil, errors.Wrap(err, "[Service.Validate] Sessions.Get")
	}

	return claims, nil
}

// Refresh validates a refresh token exactly like Validate, then rotates the
// session: the old entry is deleted before a new pair is issued, so a
// refresh token mints at most one successor pair. Two concurrent refreshes
// race on the delete; the loser finds the session gone and fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.Validate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Sessions.Delete(ctx, claims.SID); err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Sessions.Delete")
	}

	account, err := s.repos.Users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}
	if !account.IsActive {
		return nil, apperrors.ErrSessionExpired
	}

	return s.authenticate(ctx, account)
}

// Logout deletes the session entry. Idempotent: revoking an absent session
// is not an error.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if err := s.repos.Sessions.Delete(ctx, sid); err != nil {
		return errors.Wrap(err, "[Service.Logout] Sessions.Delete")
	}
	s.log.Info().Str("sid", sid).Msg("session revoked")
	return nil
}

// OAuthProfile is what the OAuth collaborator hands back after exchanging
// an authorization code.
type OAuthProfile struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	Image      string
}

// LoginWithProfile signs in an account matched by the profile's email,
// creating it on first login (no password hash; the account is OAuth-only
// until a reset sets one).
func (s *Service) LoginWithProfile(ctx context.Context, profile OAuthProfile) (*TokenPair, error) {
	if profile.Email == "" {
		return nil, apperrors.ErrInvalidPayload
	}

	account, err := s.repos.Users.GetByEmail(ctx, strings.ToLower(profile.Email))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, errors.Wrap(err, "[Service.LoginWithProfile] GetByEmail")
		}

		account = &users.Account{
			ID:       uuid.New().String(),
			Email:    strings.ToLower(profile.Email),
			Name:     strings.TrimSpace(profile.FirstName + " " + profile.LastName),
			Image:    profile.Image,
			Scope:    users.ScopeUser,
			GoogleID: profile.ProviderID,
			IsActive: true,
		}
		if err := s.repos.Users.Create(ctx, account); err != nil {
			return nil, errors.Wrap(err, "[Service.LoginWithProfile] Create")
		}
	}

	if !account.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.authenticate(ctx, account)
}

// RegisterInput is the registration payload after transport validation.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a local-strategy account. The returned account never
// carries the hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*users.Account, error) {
	if err := users.ValidatePasswordStrength(input.Password); err != nil {
		return nil, apperrors.ErrWeakPassword
	}

	hash, err := users.HashPassword(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	account := &users.Account{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(input.Email),
		PasswordHash: &hash,
		Name:         strings.TrimSpace(input.FirstName + " " + input.LastName),
		Scope:        users.ScopeUser,
		IsActive:     true,
	}
	if err := s.repos.Users.Create(ctx, account); err != nil {
		return nil, err
	}

	account.PasswordHash = nil
	return account, nil
}

// Profile returns the account without its hash.
func (s *Service) Profile(ctx context.Context, accountID string) (*users.Account, error) {
	account, err := s.repos.Users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[Service.Profile] GetByID")
	}
	account.PasswordHash = nil
	return account, nil
}

// UpdateProfile changes the display fields. Email, scope, and the hash are
// not reachable from here.
func (s *Service) UpdateProfile(ctx context.Context, accountID, name, image string) (*users.Account, error) {
	account, err := s.repos.Users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[Service.UpdateProfile] GetByID")
	}

	if name != "" {
		account.Name = name
	}
	if image != "" {
		account.Image = image
	}
	if err := s.repos.Users.Update(ctx, account); err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateProfile] Update")
	}

	account.PasswordHash = nil
	return account, nil
}

// ListAccounts pages through accounts, hashes stripped.
func (s *Service) ListAccounts(ctx context.Context, offset, limit int) ([]*users.Account, error) {
	accounts, err := s.repos.Users.List(ctx, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ListAccounts] List")
	}
	for _, account := range accounts {
		account.PasswordHash = nil
	}
	return accounts, nil
}

// ChangePassword verifies the old password before accepting the new one and
// leaves other sessions intact.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	account, err := s.repos.Users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		return errors.Wrap(err, "[Service.ChangePassword] GetByID")
	}

	if !account.HasPassword() || !users.CheckPasswordHash(oldPassword, *account.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] HashPassword")
	}
	return s.repos.Users.UpdatePasswordHash(ctx, accountID, hash)
}

// Forgotten mails a reset link when the account exists. It always succeeds
// from the caller's point of view so responses cannot be used to probe for
// registered emails.
func (s *Service) Forgotten(ctx context.Context, email, resetBaseURL string) error {
	account, err := s.repos.Users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "[Service.Forgotten] GetByEmail")
	}

	resetToken, err := s.tokens.IssueReset(account.ID)
	if err != nil {
		return errors.Wrap(err, "[Service.Forgotten] IssueReset")
	}

	uri := resetBaseURL + "/reset-password?token=" + resetToken
	msg := mailer.Message{
		To:      account.Email,
		Subject: "Forgot your password?",
		HTML: fmt.Sprintf(
			`<p>Hello. If you forgot your password, you can restore it using the following <a href="%s">LINK</a></p><br/><br/><p>In case that the URL is blocked by your mail client, please copy the following address into your browser: %s</p>`,
			uri, uri,
		),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		// The caller was already promised success; log and move on.
		s.log.Error().Err(err).Str("account_id", account.ID).Msg("reset mail failed")
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the hash, and revokes
// every live session of the account.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	accountID, err := s.tokens.ValidateReset(resetToken)
	if err != nil {
		return err
	}

	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.ResetPassword] HashPassword")
	}
	if err := s.repos.Users.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		return errors.Wrap(err, "[Service.ResetPassword] UpdatePasswordHash")
	}

	if err := s.repos.Sessions.DeleteAccount(ctx, accountID); err != nil {
		return errors.Wrap(err, "[Service.ResetPassword] Sessions.DeleteAccount")
	}
	return nil
}

// Deactivate soft-deletes the account and revokes all of its sessions, so
// its tokens stop validating immediately rather than at natural expiry.
func (s *Service) Deactivate(ctx context.Context, accountID string) error {
	if err := s.repos.Users.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		return errors.Wrap(err, "[Service.Deactivate] Deactivate")
	}

	if err := s.repos.Sessions.DeleteAccount(ctx, accountID); err != nil {
		return errors.Wrap(err, "[Service.Deactivate] Sessions.DeleteAccount")
	}

	s.log.Info().Str("account_id", accountID).Msg("account deactivated, sessions revoked")
	return nil
}
