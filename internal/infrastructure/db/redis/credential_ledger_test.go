package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, ttl time.Duration) (*CredentialLedger, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCredentialLedger(client, ttl), srv
}

func TestCredentialLedger_MarkAndRead(t *testing.T) {
	ledger, _ := newLedger(t, time.Hour)
	ctx := context.Background()

	_, ok, err := ledger.ChangedAt(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.MarkChanged(ctx, "u1", at))

	got, ok, err := ledger.ChangedAt(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(at))
}

func TestCredentialLedger_Expires(t *testing.T) {
	ledger, srv := newLedger(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, ledger.MarkChanged(ctx, "u1", time.Now()))
	require.Equal(t, time.Hour, srv.TTL("credentials:changed:u1"))

	srv.FastForward(2 * time.Hour)

	_, ok, err := ledger.ChangedAt(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCredentialLedger_MalformedEntry(t *testing.T) {
	ledger, srv := newLedger(t, time.Hour)
	require.NoError(t, srv.Set("credentials:changed:u1", "yesterday"))

	_, _, err := ledger.ChangedAt(context.Background(), "u1")
	require.Error(t, err)
}

func TestCredentialLedger_Unreachable(t *testing.T) {
	ledger, srv := newLedger(t, time.Hour)
	srv.Close()

	err := ledger.MarkChanged(context.Background(), "u1", time.Now())
	require.Error(t, err)
}
