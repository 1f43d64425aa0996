// Package redis keeps sessions in Redis so that several API instances can
// share them.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/larek/internal/domain/state"
	"github.com/xenking/larek/internal/wire"
)

const keyPrefix = "larek:session:"

var _ state.Store = (*SessionStore)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// URL overrides the fields above when set, e.g. redis://:pass@host:6379/0.
	URL string
}

// NewClient connects to Redis.
func NewClient(opts Options) (*redis.Client, error) {
	if opts.URL != "" {
		o, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return redis.NewClient(o), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

// Ping is a readiness check for the client.
func Ping(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// SessionStore is a state.Store backed by Redis string keys holding the JSON
// snapshot of a session. Keys expire after the configured idle TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a SessionStore. A zero ttl keeps sessions forever.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Get loads a session snapshot.
func (s *SessionStore) Get(ctx context.Context, id string) (*state.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, state.ErrSessionNotFound
		}
		return nil, errors.Wrapf(err, "get session %s", id)
	}

	sess, err := wire.DecodeSession(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	return sess, nil
}

// Save writes the snapshot and resets its expiry.
func (s *SessionStore) Save(ctx context.Context, sess *state.Session) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeSession(e, sess)

	if err := s.client.Set(ctx, key(sess.ID), e.Bytes(), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "save session %s", sess.ID)
	}
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete session %s", id)
	}
	return nil
}
