// Package postgres is the pgx-backed account repository. Email uniqueness
// is enforced by a unique index on lower(email); deletion is soft.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/webidscan/auth-server/internal/errors"
	"github.com/webidscan/auth-server/users"
)

var _ users.Repo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

// New connects a pgx pool to the given database URL and pings it so a bad
// URL fails at startup rather than on first login.
func New(ctx context.Context, dbURL string) (*Repo, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.New] parse config")
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.New] connect")
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[postgres.New] ping")
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Close() {
	r.db.Close()
}

func (r *Repo) Create(ctx context.Context, account *users.Account) error {
	query := `
		INSERT INTO accounts(id, email, password_hash, name, image, scope, google_id, is_active, time_created, time_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`

	_, err := r.db.Exec(ctx, query,
		account.ID,
		strings.ToLower(account.Email),
		account.PasswordHash,
		account.Name,
		account.Image,
		account.Scope,
		account.GoogleID,
		account.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperrors.ErrEmailTaken
		}
		return errors.Wrap(err, "[postgres.Create] exec")
	}
	return nil
}

const selectColumns = `
	SELECT id, email, password_hash, name, image, scope, google_id, is_active, time_created, time_updated
	FROM accounts
`

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.Account, error) {
	return r.getOne(ctx, selectColumns+` WHERE email = lower($1)`, email)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.Account, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *Repo) getOne(ctx context.Context, query string, arg any) (*users.Account, error) {
	var a users.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Name,
		&a.Image,
		&a.Scope,
		&a.GoogleID,
		&a.IsActive,
		&a.TimeCreated,
		&a.TimeUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "[postgres.getOne] scan")
	}
	return &a, nil
}

func (r *Repo) Update(ctx context.Context, account *users.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, image = $3, scope = $4, time_updated = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, account.ID, account.Name, account.Image, account.Scope)
	if err != nil {
		return errors.Wrap(err, "[postgres.Update] exec")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *Repo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `UPDATE accounts SET password_hash = $2, time_updated = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return errors.Wrap(err, "[postgres.UpdatePasswordHash] exec")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]*users.Account, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, selectColumns+` ORDER BY time_created OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.List] query")
	}
	defer rows.Close()

	var out []*users.Account
	for rows.Next() {
		var a users.Account
		if err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.PasswordHash,
			&a.Name,
			&a.Image,
			&a.Scope,
			&a.GoogleID,
			&a.IsActive,
			&a.TimeCreated,
			&a.TimeUpdated,
		); err != nil {
			return nil, errors.Wrap(err, "[postgres.List] scan")
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *Repo) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE accounts SET is_active = false, time_updated = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "[postgres.Deactivate] exec")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
