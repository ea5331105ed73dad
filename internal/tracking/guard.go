package tracking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld means another tracking session already owns the vehicle's
// lease; at most one trip may track per vehicle.
var ErrLeaseHeld = errors.New("tracking lease already held")

// Guard pairs a resource acquisition with its release around one tracking
// session. Every exit path from tracking must release exactly once.
type Guard interface {
	Acquire(ctx context.Context, tripID string) error
	Release(ctx context.Context)
}

// NopGuard is used when no shared lease backend is configured.
type NopGuard struct{}

func (NopGuard) Acquire(context.Context, string) error { return nil }
func (NopGuard) Release(context.Context)               {}

// RedisLease enforces the single-active-trip invariant with a redis lease
// keyed by vehicle. Release is idempotent.
type RedisLease struct {
	redis     *redis.Client
	key       string
	ttl       time.Duration
	mu        sync.Mutex
	heldTrip  string
	holdToken bool
}

func NewRedisLease(redisClient *redis.Client, vehicleID string) *RedisLease {
	return &RedisLease{
		redis: redisClient,
		key:   "trip:lease:" + vehicleID,
		ttl:   24 * time.Hour,
	}
}

func (l *RedisLease) Acquire(ctx context.Context, tripID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.redis == nil {
		l.holdToken = true
		l.heldTrip = tripID
		return nil
	}

	ok, err := l.redis.SetNX(ctx, l.key, tripID, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		// a crashed session may have left its own lease behind
		current, getErr := l.redis.Get(ctx, l.key).Result()
		if getErr == nil && current == tripID {
			l.holdToken = true
			l.heldTrip = tripID
			return nil
		}
		return ErrLeaseHeld
	}
	l.holdToken = true
	l.heldTrip = tripID
	return nil
}

func (l *RedisLease) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.holdToken {
		return
	}
	l.holdToken = false
	l.heldTrip = ""
	if l.redis == nil {
		return
	}
	if err := l.redis.Del(ctx, l.key).Err(); err != nil {
		log.Printf("lease release failed: %v", err)
	}
}
