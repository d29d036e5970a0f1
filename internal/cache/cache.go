package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const listingKeyPrefix = "listing:"

// Cache stores enumeration listings in Redis
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection
func NewCache(cfg config.CacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetListing caches the listing of a video
func (c *Cache) SetListing(ctx context.Context, listing *models.Listing, ttl time.Duration) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	return c.client.Set(ctx, listingKey(listing.VideoID), data, ttl).Err()
}

// GetListing returns the cached listing of a video, or nil on a cache miss
func (c *Cache) GetListing(ctx context.Context, videoID string) (*models.Listing, error) {
	data, err := c.client.Get(ctx, listingKey(videoID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get listing from cache: %w", err)
	}

	var listing models.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}

	return &listing, nil
}

// DeleteListing drops the cached listing of a video
func (c *Cache) DeleteListing(ctx context.Context, videoID string) error {
	return c.client.Del(ctx, listingKey(videoID)).Err()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func listingKey(videoID string) string {
	return listingKeyPrefix + videoID
}
