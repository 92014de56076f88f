package cache

import (
	"context"
	"sync"
	"time"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

// AddressCache stores resolved CEP lookups. A resolved address does not change,
// so entries only expire to bound storage.
type AddressCache interface {
	Get(ctx context.Context, cep string) (*domain.ShippingAddress, bool, error)
	Set(ctx context.Context, cep string, value *domain.ShippingAddress, ttl time.Duration) error
}

type NoopAddressCache struct{}

func (NoopAddressCache) Get(_ context.Context, _ string) (*domain.ShippingAddress, bool, error) {
	return nil, false, nil
}

func (NoopAddressCache) Set(_ context.Context, _ string, _ *domain.ShippingAddress, _ time.Duration) error {
	return nil
}

type memoryEntry struct {
	address   domain.ShippingAddress
	expiresAt time.Time
}

// MemoryAddressCache is a process-local cache for single-instance deployments
// and the operator CLI.
type MemoryAddressCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryAddressCache() *MemoryAddressCache {
	return &MemoryAddressCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryAddressCache) Get(_ context.Context, cep string) (*domain.ShippingAddress, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[cep]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, cep)
		c.mu.Unlock()
		return nil, false, nil
	}
	address := entry.address
	return &address, true, nil
}

func (c *MemoryAddressCache) Set(_ context.Context, cep string, value *domain.ShippingAddress, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	entry := memoryEntry{address: *value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[cep] = entry
	c.mu.Unlock()
	return nil
}
