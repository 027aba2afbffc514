package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/redis/go-redis/v9"
)

const sourceLockKeyPrefix = "capstan:scheduling:lock:"

// releaseScript deletes the lock only while the releasing transaction still
// holds it, so a holder whose key expired cannot delete a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSourceLock implements domain.SourceLock on Redis for deployments where
// multiple instances coordinate transactions. The key expires after ttl so a
// crashed holder cannot wedge its source forever; the stale-transaction sweep
// remains the authoritative cleanup. Every staging write re-acquires the lock,
// which renews the expiry, so ttl must stay above the sweep's inactivity
// bound: an active transaction then renews before its key can lapse, and any
// transaction idle long enough to lose the key is already sweep-eligible.
type RedisSourceLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSourceLock creates a new Redis source lock.
func NewRedisSourceLock(client *redis.Client, ttl time.Duration) *RedisSourceLock {
	return &RedisSourceLock{client: client, ttl: ttl}
}

// Acquire takes the lock for source on behalf of the transaction.
func (l *RedisSourceLock) Acquire(ctx context.Context, source, transactionID string) error {
	key := sourceLockKeyPrefix + source

	ok, err := l.client.SetNX(ctx, key, transactionID, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock for source %s: %w", source, err)
	}
	if ok {
		return nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; retry once.
		return l.Acquire(ctx, source, transactionID)
	}
	if err != nil {
		return fmt.Errorf("inspect lock for source %s: %w", source, err)
	}
	if holder == transactionID {
		// Re-acquisition by the holder renews the expiry.
		return l.client.Expire(ctx, key, l.ttl).Err()
	}
	return fmt.Errorf("%w: source %s locked by transaction %s",
		domain.ErrTransactionConflict, source, holder)
}

// Release frees the lock for source if the transaction still holds it.
// Releasing an unheld lock is not an error.
func (l *RedisSourceLock) Release(ctx context.Context, source, transactionID string) error {
	return releaseScript.Run(ctx, l.client,
		[]string{sourceLockKeyPrefix + source}, transactionID).Err()
}
