package locker

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"payment-reconciliation/internal/models"
)

// RedisLocker holds run keys in Redis so multiple worker instances cannot
// start the same (gateway, period) run concurrently.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, "recon:run:"+key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, &models.InvalidStateError{Entity: "run key", ID: key, State: models.RunStatusInProgress, Op: "start"}
		}
		return nil, err
	}

	release := func() {
		// Best effort; the TTL reclaims the key if the release is lost.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}
	return release, nil
}
