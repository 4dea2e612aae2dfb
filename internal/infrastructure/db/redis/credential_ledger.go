package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialLedger records when an account's credentials last changed.
// Key format: credentials:changed:<user_id>, value is unix seconds.
//
// Entries expire after ttl, which should equal the access token lifetime:
// once it has passed every token issued before the mark is expired anyway.
type CredentialLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCredentialLedger creates a CredentialLedger wrapping the given Redis client.
func NewCredentialLedger(client *redis.Client, ttl time.Duration) *CredentialLedger {
	return &CredentialLedger{client: client, ttl: ttl}
}

// MarkChanged records at as the moment userID's credentials changed.
func (l *CredentialLedger) MarkChanged(ctx context.Context, userID string, at time.Time) error {
	if err := l.client.Set(ctx, l.key(userID), at.Unix(), l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger mark: %w", err)
	}
	return nil
}

// ChangedAt returns the last recorded change for userID.
func (l *CredentialLedger) ChangedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := l.client.Get(ctx, l.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ledger lookup: %w", err)
	}

	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ledger lookup: malformed entry %q: %w", raw, err)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func (l *CredentialLedger) key(userID string) string {
	return "credentials:changed:" + userID
}
