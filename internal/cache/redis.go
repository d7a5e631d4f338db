// Package cache keeps the Redis side of carts and site settings.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/safar/go-shop-orders/internal/config"
	"github.com/safar/go-shop-orders/internal/models"
)

var ErrMiss = errors.New("cache miss")

const settingsKey = "site_settings"

type Redis struct {
	client *redis.Client
}

func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func cartItemsKey(userID uuid.UUID) string {
	return fmt.Sprintf("cart:%s:items", userID)
}

func cartMetaKey(userID uuid.UUID) string {
	return fmt.Sprintf("cart:%s:meta", userID)
}

// InvalidateCart drops the cached cart of userID. Missing keys are not an
// error.
func (r *Redis) InvalidateCart(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, cartItemsKey(userID), cartMetaKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate cart: %w", err)
	}
	return nil
}

func (r *Redis) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	raw, err := r.client.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached settings: %w", err)
	}

	var s models.SiteSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached settings: %w", err)
	}
	return &s, nil
}

func (r *Redis) SetSettings(ctx context.Context, s models.SiteSettings, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := r.client.Set(ctx, settingsKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache settings: %w", err)
	}
	return nil
}

func (r *Redis) InvalidateSettings(ctx context.Context) error {
	return r.client.Del(ctx, settingsKey).Err()
}
