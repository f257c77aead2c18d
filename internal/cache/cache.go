/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for the catalog
// collections the snapshot loader reads on every engine pass.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/models"
)

// Default TTL for catalog entries. Runs are never cached; they change on
// every optimizer pass and clock tick.
const DefaultCatalogTTL = 5 * time.Minute

// Key names for Redis cache entries.
const (
	KeyEquipment = "lineplan:cache:equipment"
	KeyProducts  = "lineplan:cache:products"
	KeyLines     = "lineplan:cache:lines"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CatalogTTL    time.Duration
}

// Cache wraps a redis client. A nil *Cache is valid and disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis and returns a cache, or nil when no address is
// configured.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	ttl := cfg.CatalogTTL
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, catalog cache disabled")
		return nil
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// GetEquipment returns the cached equipment catalog.
func (c *Cache) GetEquipment(ctx context.Context) ([]models.Equipment, bool) {
	var out []models.Equipment
	return out, c.get(ctx, KeyEquipment, &out)
}

// SetEquipment stores the equipment catalog.
func (c *Cache) SetEquipment(ctx context.Context, equipment []models.Equipment) error {
	return c.set(ctx, KeyEquipment, equipment)
}

// GetProducts returns the cached product catalog.
func (c *Cache) GetProducts(ctx context.Context) ([]models.Product, bool) {
	var out []models.Product
	return out, c.get(ctx, KeyProducts, &out)
}

// SetProducts stores the product catalog.
func (c *Cache) SetProducts(ctx context.Context, products []models.Product) error {
	return c.set(ctx, KeyProducts, products)
}

// GetLines returns the cached line catalog.
func (c *Cache) GetLines(ctx context.Context) ([]models.ProductionLine, bool) {
	var out []models.ProductionLine
	return out, c.get(ctx, KeyLines, &out)
}

// SetLines stores the line catalog.
func (c *Cache) SetLines(ctx context.Context, lines []models.ProductionLine) error {
	return c.set(ctx, KeyLines, lines)
}

// Invalidate drops all catalog keys; called after catalog mutations.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, KeyEquipment, KeyProducts, KeyLines).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (c *Cache) get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
