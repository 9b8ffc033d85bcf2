package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Scope is the coarse-grained authorization role carried in token claims.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// bcryptCost matches the salt rounds the original accounts were hashed
// with; raising it would invalidate none of them but slow login noticeably.
const bcryptCost = 8

// Account is the durable identity record. PasswordHash is nil for accounts
// created through an OAuth provider and is never serialized.
type Account struct {
	ID           string     `json:"id,omitempty"`
	Email        string     `json:"email,omitempty"` // stored lower-cased, unique
	PasswordHash *string    `json:"-"`
	Name         string     `json:"name,omitempty"`
	Image        string     `json:"image,omitempty"`
	Scope        Scope      `json:"scope,omitempty"`
	GoogleID     string     `json:"google_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	TimeCreated  time.Time  `json:"time_created,omitempty"`
	TimeUpdated  time.Time  `json:"time_updated,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HasPassword reports whether the account can authenticate locally.
// OAuth-only accounts carry no hash.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

func (a *Account) IsAdmin() bool {
	return a.Scope == ScopeAdmin
}
