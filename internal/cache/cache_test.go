package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

func TestMemoryAddressCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryAddressCache()
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "01310100")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "01310100", &domain.ShippingAddress{CEP: "01310-100", State: "SP"}, time.Hour))
	got, ok, err := c.Get(ctx, "01310100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SP", got.State)

	got.State = "RJ"
	again, _, _ := c.Get(ctx, "01310100")
	assert.Equal(t, "SP", again.State)

	now = now.Add(time.Hour)
	_, ok, err = c.Get(ctx, "01310100")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAddressCacheIgnoresNil(t *testing.T) {
	c := NewMemoryAddressCache()
	require.NoError(t, c.Set(context.Background(), "x", nil, 0))
	_, ok, _ := c.Get(context.Background(), "x")
	assert.False(t, ok)
}

func TestRedisAddressCacheIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewRedisAddressCache(addr, os.Getenv("REDIS_PASSWORD"), db)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	cep := "99999" + strconv.FormatInt(time.Now().UnixNano()%1000, 10)
	require.NoError(t, c.Set(ctx, cep, &domain.ShippingAddress{CEP: cep, City: "Curitiba", State: "PR"}, time.Minute))

	got, ok, err := c.Get(ctx, cep)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Curitiba", got.City)
}
