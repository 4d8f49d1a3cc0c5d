// Package lock keeps two sweeps from running at the same time, within one
// process or across replicas sharing a Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key guarding sweeps.
const DefaultKey = "careerwatch:sweep:lock"

// ErrHeld is returned by Acquire when another sweep holds the lock.
var ErrHeld = errors.New("sweep lock held by another run")

// Locker guards a sweep. Acquire returns a release func on success.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process Locker for single-replica deployments.
type Local struct {
	mu sync.Mutex
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local { return &Local{} }

// Acquire implements Locker without blocking.
func (l *Local) Acquire(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	return l.mu.Unlock, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker backed by SET NX with a TTL. The TTL bounds how long a
// crashed holder can block later sweeps.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis returns a Redis locker on key. ttl should exceed the sweep budget.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Acquire implements Locker without blocking. Each acquisition gets its own
// token so a late release never frees somebody else's lock.
func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	release := func() {
		// The caller's context may already be done when the sweep ends.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(ctx, r.client, []string{r.key}, token).Int()
	}
	return release, nil
}
