// Package session defines the server-side session capability. A session is
// an ephemeral snapshot of an account's public claims keyed by the session
// id embedded in issued tokens. Its TTL is independent of token expiry, so
// a token that still verifies can fail validation once the entry lapses.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the session id is absent. Deleted,
// evicted, and never-existed are indistinguishable to the caller.
var ErrNotFound = errors.New("session not found")

// Snapshot is the claim subset written at login and read on every
// authenticated request.
type Snapshot struct {
	ID        string    `json:"sid"`
	AccountID string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Scope     []string  `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the key-value session capability. Put, Get, and Delete are
// atomic per key; no further coordination is required by callers.
type Store interface {
	Put(ctx context.Context, sid string, snapshot Snapshot, ttl time.Duration) error
	Get(ctx context.Context, sid string) (Snapshot, error)
	// Delete is idempotent: removing an absent key is not an error.
	Delete(ctx context.Context, sid string) error
	// DeleteAccount removes every live session belonging to the account,
	// so tokens of deactivated users fail on next validation instead of
	// riding out their natural expiry.
	DeleteAccount(ctx context.Context, accountID string) error
}
