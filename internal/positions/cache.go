package positions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"campustransit/internal/model"
)

// Cache keeps the last reported position per vehicle in Redis. Entries
// expire with the configured TTL so a vehicle that stops reporting drops
// off the map instead of showing a stale point.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func positionKey(vehicleID string) string {
	return "vehicle_position:" + vehicleID
}

func (c *Cache) Set(ctx context.Context, position model.VehiclePosition) error {
	if c == nil || c.client == nil {
		return errors.New("position_cache_not_configured")
	}
	data, err := json.Marshal(position)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, positionKey(position.VehicleID), data, c.ttl).Err()
}

func (c *Cache) Get(ctx context.Context, vehicleID string) (model.VehiclePosition, bool, error) {
	var position model.VehiclePosition
	if c == nil || c.client == nil {
		return position, false, nil
	}
	value, err := c.client.Get(ctx, positionKey(vehicleID)).Result()
	if err == redis.Nil {
		return position, false, nil
	}
	if err != nil {
		return position, false, err
	}
	if err := json.Unmarshal([]byte(value), &position); err != nil {
		return position, false, err
	}
	return position, true, nil
}

func (c *Cache) Delete(ctx context.Context, vehicleID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, positionKey(vehicleID)).Err()
}
