package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQuotaExceeded is returned when a user has burned through their daily
// token allowance.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// QuotaTracker enforces a per-user daily token budget in Redis. Keys roll
// over at UTC midnight via TTL, so there is no reset job.
type QuotaTracker struct {
	rdb        *redis.Client
	dailyLimit int64
}

func NewQuotaTracker(rdb *redis.Client, dailyLimit int64) *QuotaTracker {
	if dailyLimit <= 0 {
		dailyLimit = 100000
	}
	return &QuotaTracker{rdb: rdb, dailyLimit: dailyLimit}
}

// Consume reserves estimatedTokens against the user's daily budget. The
// increment happens before the external call, so a failed call still counts.
func (q *QuotaTracker) Consume(ctx context.Context, userID string, estimatedTokens int64) error {
	key := quotaKey(userID)

	used, err := q.rdb.IncrBy(ctx, key, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if used == estimatedTokens {
		// First write today; expire at the next UTC midnight
		q.rdb.ExpireAt(ctx, key, nextMidnightUTC())
	}

	if used > q.dailyLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// Remaining returns the unspent tokens for today.
func (q *QuotaTracker) Remaining(ctx context.Context, userID string) (int64, error) {
	used, err := q.rdb.Get(ctx, quotaKey(userID)).Int64()
	if err == redis.Nil {
		return q.dailyLimit, nil
	}
	if err != nil {
		return 0, err
	}
	remaining := q.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func quotaKey(userID string) string {
	return "quota:" + userID + ":" + time.Now().UTC().Format("2006-01-02")
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
