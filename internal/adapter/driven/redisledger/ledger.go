// Package redisledger implements the EventLedger port on Redis, for
// deployments running more than one gateway instance.
package redisledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventLedger = (*Ledger)(nil)

const keyPrefix = "mpgateway:event:"

// Ledger claims event ids with SET NX and a TTL equal to the retention
// window, so expiry is handled by Redis instead of lazy eviction.
type Ledger struct {
	client    *redis.Client
	retention time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr string, retention time.Duration) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Ledger{client: client, retention: retention}, nil
}

// NewWithClient wraps an existing client. Intended for tests.
func NewWithClient(client *redis.Client, retention time.Duration) *Ledger {
	return &Ledger{client: client, retention: retention}
}

// TryClaim atomically claims the event id unless it is already present.
func (l *Ledger) TryClaim(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+eventID, 1, l.retention).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release drops the claim for an event id.
func (l *Ledger) Release(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	return l.client.Close()
}
