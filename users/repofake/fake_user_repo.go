package fakeuserrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/webidscan/auth-server/internal/errors"
	"github.com/webidscan/auth-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory account repository for tests and local
// development. Not durable, not shared across processes.
type FakeUserRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // lower-cased email to account id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := strings.ToLower(account.Email)
	if _, ok := ur.emailIds[email]; ok {
		return apperrors.ErrEmailTaken
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.TimeCreated.IsZero() {
		account.TimeCreated = time.Now()
	}
	account.TimeUpdated = account.TimeCreated
	account.Email = email

	cp := *account
	ur.accounts[account.ID] = &cp
	ur.emailIds[email] = account.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *ur.accounts[id]
	return &cp, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	account, ok := ur.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (ur *FakeUserRepo) Update(_ context.Context, account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.accounts[account.ID]
	if !ok {
		return apperrors.ErrNotFound
	}

	account.TimeCreated = existing.TimeCreated
	account.TimeUpdated = time.Now()
	cp := *account
	cp.Email = existing.Email // email is immutable here
	ur.accounts[account.ID] = &cp
	return nil
}

func (ur *FakeUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	account, ok := ur.accounts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	account.PasswordHash = &hash
	account.TimeUpdated = time.Now()
	return nil
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	ids := make([]string, 0, len(ur.accounts))
	for id := range ur.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	out := make([]*users.Account, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *ur.accounts[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (ur *FakeUserRepo) Deactivate(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	account, ok := ur.accounts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	account.IsActive = false
	account.TimeUpdated = time.Now()
	return nil
}
