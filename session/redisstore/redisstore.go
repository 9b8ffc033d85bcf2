// Package redisstore is the Redis-backed session store. Snapshots are
// stored as JSON under a prefixed key with the session TTL; a per-account
// set indexes live session ids so revoking an account is a bounded
// operation rather than a scan.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/webidscan/auth-server/session"
)

var _ session.Store = (*Store)(nil)

const defaultPrefix = "sessions"

type Store struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Store from a Redis URL (redis://:pass@host:6379/0) and
// pings it so a bad URL fails at startup.
func New(ctx context.Context, redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.New] parse url")
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "[redisstore.New] ping")
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client, prefix: defaultPrefix}
}

func (s *Store) key(sid string) string {
	return s.prefix + ":" + sid
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

func (s *Store) Put(ctx context.Context, sid string, snapshot session.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "[redisstore.Put] marshal")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sid), data, ttl)
		pipe.SAdd(ctx, s.accountKey(snapshot.AccountID), sid)
		// Keep the index from outliving its sessions forever.
		pipe.Expire(ctx, s.accountKey(snapshot.AccountID), ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[redisstore.Put] pipeline")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sid string) (session.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Snapshot{}, session.ErrNotFound
		}
		return session.Snapshot{}, errors.Wrap(err, "[redisstore.Get] get")
	}

	var snapshot session.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt blob is as good as no session.
		return session.Snapshot{}, session.ErrNotFound
	}
	return snapshot, nil
}

func (s *Store) Delete(ctx context.Context, sid string) error {
	snapshot, err := s.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sid))
		pipe.SRem(ctx, s.accountKey(snapshot.AccountID), sid)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[redisstore.Delete] pipeline")
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	sids, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return errors.Wrap(err, "[redisstore.DeleteAccount] smembers")
	}

	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, s.key(sid))
	}
	keys = append(keys, s.accountKey(accountID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.DeleteAccount] del")
	}
	return nil
}
