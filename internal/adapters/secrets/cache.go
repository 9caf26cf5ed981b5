package secrets

import (
	"sync"
	"time"
)

// secretCache is a TTL cache shared by the AWS and Vault adapters so hot
// paths (webhook signature checks) do not hit the secret store per request.
type secretCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	enabled bool
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

func newSecretCache(ttl time.Duration, enabled bool) *secretCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &secretCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		enabled: enabled,
	}
}

func (c *secretCache) get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *secretCache) set(key, value string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}
