package users

import "context"

// Repo is the account persistence capability. Email lookups are
// case-insensitive; email uniqueness is enforced by the implementation.
type Repo interface {
	Create(ctx context.Context, account *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, account *Account) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	List(ctx context.Context, offset, limit int) ([]*Account, error)
	// Deactivate soft-deletes the account: the row and hash are kept,
	// IsActive flips to false.
	Deactivate(ctx context.Context, id string) error
}
