package cache

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	lockTTL       = 15 * time.Second
	lockRetryWait = 100 * time.Millisecond
	lockAttempts  = 20
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by another worker is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLocker provides short-lived advisory locks keyed by an arbitrary id.
// Locks bound contention between a user-initiated cancel and a concurrently
// arriving webhook for the same subscription; the database status
// preconditions remain the correctness guard if Redis is unavailable.
type RedisLocker struct{}

// WithLock runs fn while holding the lock for key. If the lock cannot be
// acquired within the retry window, fn runs anyway and relies on the
// database preconditions.
func (RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	token := uuid.NewString()
	lockKey := "lock:" + key

	acquired := false
	for i := 0; i < lockAttempts; i++ {
		ok, err := GetClient().SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			log.Printf("cache: lock %s unavailable, proceeding without: %v", lockKey, err)
			break
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}

	if acquired {
		defer func() {
			if err := GetClient().Eval(context.Background(), releaseScript, []string{lockKey}, token).Err(); err != nil {
				log.Printf("cache: failed to release lock %s: %v", lockKey, err)
			}
		}()
	}

	return fn()
}
