package campaigns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants a short lease per campaign so overlapping ticks do not
// advance the same campaign twice.
type Locker interface {
	Acquire(ctx context.Context, campaignID uuid.UUID, ttl time.Duration) (release func(), ok bool, err error)
}

const lockKeyPrefix = "crm:campaign:lease:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker creates a lease locker.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lease. ok is false when another holder has it.
func (l *RedisLocker) Acquire(ctx context.Context, campaignID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	key := lockKeyPrefix + campaignID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire campaign lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release even when the tick's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

var _ Locker = (*RedisLocker)(nil)
