package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

const addressKeyPrefix = "terravik:cep:"

type RedisAddressCache struct {
	client *redis.Client
}

func NewRedisAddressCache(addr string, password string, db int) *RedisAddressCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAddressCache{client: client}
}

func (c *RedisAddressCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAddressCache) Close() error {
	return c.client.Close()
}

func (c *RedisAddressCache) Get(ctx context.Context, cep string) (*domain.ShippingAddress, bool, error) {
	val, err := c.client.Get(ctx, addressKeyPrefix+cep).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var address domain.ShippingAddress
	if err := json.Unmarshal(val, &address); err != nil {
		return nil, false, err
	}
	return &address, true, nil
}

func (c *RedisAddressCache) Set(ctx context.Context, cep string, value *domain.ShippingAddress, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, addressKeyPrefix+cep, payload, ttl).Err()
}
