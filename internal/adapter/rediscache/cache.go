// Package rediscache provides a shared, Redis-backed result cache tier for
// geocoding lookups.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/redis/go-redis/v9"
)

const (
	tier      = "redis"
	keyPrefix = "geocode:"

	methodForward = "forward"
	methodReverse = "reverse"
)

// record is the stored form of a placemark.
type record struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	PlaceName string  `json:"place_name"`
}

// Cache wraps a Geocoder with a Redis cache. Redis failures never fail a
// lookup; they are logged and the inner geocoder is consulted.
type Cache struct {
	inner   domain.Geocoder
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Redis cache decorator around inner.
func New(inner domain.Geocoder, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	return &Cache{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// NewClient opens a go-redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (c *Cache) ForwardGeocode(ctx context.Context, address string) ([]domain.Placemark, error) {
	return c.lookup(ctx, methodForward, keyPrefix+"fwd:"+address, func() ([]domain.Placemark, error) {
		return c.inner.ForwardGeocode(ctx, address)
	})
}

func (c *Cache) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Placemark, error) {
	return c.lookup(ctx, methodReverse, keyPrefix+"rev:"+coord.String(), func() ([]domain.Placemark, error) {
		return c.inner.ReverseGeocode(ctx, coord)
	})
}

// CheckReadiness pings Redis.
func (c *Cache) CheckReadiness(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) lookup(ctx context.Context, method, key string, fetch func() ([]domain.Placemark, error)) ([]domain.Placemark, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		placemarks, decodeErr := decode(data)
		if decodeErr == nil {
			c.metrics.GeocodeCache.WithLabelValues(tier, method, "hit").Inc()
			return placemarks, nil
		}
		c.metrics.GeocodeCache.WithLabelValues(tier, method, "error").Inc()
		c.logger.Warn("discarding corrupt redis cache entry", "key", key, "error", decodeErr)
	case errors.Is(err, redis.Nil):
		c.metrics.GeocodeCache.WithLabelValues(tier, method, "miss").Inc()
	default:
		c.metrics.GeocodeCache.WithLabelValues(tier, method, "error").Inc()
		c.logger.Warn("redis cache get failed", "key", key, "error", err)
	}

	placemarks, err := fetch()
	if err != nil {
		return nil, err
	}
	if len(placemarks) == 0 {
		return placemarks, nil
	}

	encoded, err := encode(placemarks)
	if err != nil {
		c.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return placemarks, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.metrics.GeocodeCache.WithLabelValues(tier, method, "error").Inc()
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
	return placemarks, nil
}

func encode(placemarks []domain.Placemark) ([]byte, error) {
	records := make([]record, len(placemarks))
	for i, p := range placemarks {
		coord := p.Coordinate()
		records[i] = record{Lat: coord.Latitude, Lon: coord.Longitude, PlaceName: p.Name()}
	}
	return json.Marshal(records)
}

func decode(data []byte) ([]domain.Placemark, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode cached placemarks: %w", err)
	}
	placemarks := make([]domain.Placemark, len(records))
	for i, r := range records {
		placemarks[i] = domain.NewPlacemark(domain.Coordinate{Latitude: r.Lat, Longitude: r.Lon}, r.PlaceName)
	}
	return placemarks, nil
}
