package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/state"
)

// newTestStore connects to a local Redis and skips the test when none is
// running.
func newTestStore(t *testing.T, ttl time.Duration) *SessionStore {
	t.Helper()

	client, err := NewClient(Options{Addr: "localhost:6379"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	if err := Ping(client)(context.Background()); err != nil {
		t.Skip("Skipping Redis test: redis not available")
	}
	return NewSessionStore(client, ttl)
}

func TestSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Minute)

	preview := "b"
	sess := &state.Session{
		ID:        uuid.NewString(),
		Basket:    []string{"a", "b"},
		Preview:   &preview,
		Order:     &order.Order{Payment: order.PaymentCard, Address: "Moscow"},
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Save(ctx, sess))
	t.Cleanup(func() { _ = store.Delete(ctx, sess.ID) })

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Basket, got.Basket)
	assert.Equal(t, "b", *got.Preview)
	assert.Equal(t, order.PaymentCard, got.Order.Payment)
	assert.True(t, sess.UpdatedAt.Equal(got.UpdatedAt))

	ttl, err := store.client.TTL(ctx, key(sess.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	require.ErrorIs(t, err, state.ErrSessionNotFound)
}

func TestNewClient_URL(t *testing.T) {
	client, err := NewClient(Options{URL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = NewClient(Options{URL: "http://nope"})
	require.Error(t, err)
}
