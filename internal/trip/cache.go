package trip

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tripKey      = "trip:current"
	driveModeKey = "trip:drive-mode"
	historyKey   = "trip:history:"
)

// Cache keeps the last known trip, the drive mode and trip-history responses
// in redis so the agent can recover across restarts and serve history while
// offline. All methods are safe on a nil redis client.
type Cache struct {
	redis *redis.Client
}

func NewCache(redisClient *redis.Client) *Cache {
	return &Cache{redis: redisClient}
}

func (c *Cache) SaveTrip(ctx context.Context, t Trip) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tripKey, data, 0).Err()
}

func (c *Cache) LoadTrip(ctx context.Context) (Trip, bool) {
	if c.redis == nil {
		return Trip{}, false
	}
	data, err := c.redis.Get(ctx, tripKey).Bytes()
	if err != nil {
		return Trip{}, false
	}
	var t Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return Trip{}, false
	}
	return t, true
}

func (c *Cache) ClearTrip(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, tripKey).Err()
}

func (c *Cache) SaveDriveMode(ctx context.Context, mode DriveMode) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Set(ctx, driveModeKey, string(mode), 0).Err()
}

func (c *Cache) LoadDriveMode(ctx context.Context) DriveMode {
	if c.redis == nil {
		return ModeNormal
	}
	val, err := c.redis.Get(ctx, driveModeKey).Result()
	if err != nil || !DriveMode(val).Valid() {
		return ModeNormal
	}
	return DriveMode(val)
}

func (c *Cache) SaveHistory(ctx context.Context, driverID string, day time.Time, trips []Trip) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(trips)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, historyField(driverID, day), data, 24*time.Hour).Err()
}

func (c *Cache) LoadHistory(ctx context.Context, driverID string, day time.Time) ([]Trip, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, historyField(driverID, day)).Bytes()
	if err != nil {
		return nil, false
	}
	var trips []Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, false
	}
	return trips, true
}

// InvalidateHistory drops every cached history page for the driver; called
// when the server reports a termination the cache could not have seen.
func (c *Cache) InvalidateHistory(ctx context.Context, driverID string) {
	if c.redis == nil {
		return
	}
	keys, err := c.redis.Keys(ctx, historyKey+driverID+":*").Result()
	if err != nil || len(keys) == 0 {
		return
	}
	_ = c.redis.Del(ctx, keys...).Err()
}

func historyField(driverID string, day time.Time) string {
	return historyKey + driverID + ":" + day.Format("2006-01-02")
}
