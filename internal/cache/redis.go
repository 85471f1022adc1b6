package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

const generationKey = "cache:flights:gen"

func flightsKey(gen int64) string {
	return fmt.Sprintf("cache:flights:%d", gen)
}

// RedisCache keeps the unfiltered flight listing keyed by a generation
// counter. Invalidation bumps the counter instead of deleting, so a listing
// read before a write can never be stored as current after it.
type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetFlights returns the listing cached for the current generation together
// with that generation. A miss returns nil flights.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("read flights generation: %w", err)
	}

	data, err := c.client.Get(ctx, flightsKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, gen, fmt.Errorf("read flights: %w", err)
	}

	flights := []domain.Flight{}
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, gen, fmt.Errorf("decode cached flights: %w", err)
	}
	return flights, gen, nil
}

// SetFlights stores the listing under gen, normally the value returned by the
// GetFlights miss that preceded the database read.
func (c *RedisCache) SetFlights(ctx context.Context, gen int64, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(gen), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}
