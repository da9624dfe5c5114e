// internal/services/event_ledger.go
package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers provider event ids that were already handled. It is
// a fast path in front of the unique checkout session column, not a
// replacement for it.
type EventLedger interface {
	// Claim reports whether the caller is the first to see eventID.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}

type RedisEventLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisEventLedger(client *redis.Client, ttl time.Duration) *RedisEventLedger {
	return &RedisEventLedger{
		client: client,
		prefix: "eshop:webhook:event:",
		ttl:    ttl,
	}
}

func (l *RedisEventLedger) Claim(ctx context.Context, eventID string) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisEventLedger) Release(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, l.prefix+eventID).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// NoopEventLedger claims every event; used when Redis is not configured.
type NoopEventLedger struct{}

func (NoopEventLedger) Claim(context.Context, string) (bool, error) { return true, nil }
func (NoopEventLedger) Release(context.Context, string) error       { return nil }
