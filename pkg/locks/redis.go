package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisReleaseScript deletes the lock key only if this process still owns it.
// KEYS[1] = lock key
// ARGV[1] = owner token
var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker for multi-node deployments. Locks carry a TTL so a
// crashed worker cannot wedge a vanpool forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed locker. ttl bounds how long a crashed
// holder can block other workers; it must exceed the longest investigation
// cycle.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb, ttl: ttl}
}

func (l *Redis) Acquire(ctx context.Context, vanpoolID string) (func(), error) {
	key := fmt.Sprintf("patrol:lock:%s", vanpoolID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Release must not inherit a cancelled request context.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = redisReleaseScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}
	return release, nil
}

var _ Locker = (*Redis)(nil)
