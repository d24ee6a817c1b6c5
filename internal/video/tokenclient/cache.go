package tokenclient

import (
	"sync"
	"time"

	"telemed/internal/video/token"
)

// CacheSafetyMargin is the window before expiry inside which a cached token
// is treated as already stale. A token handed out this close to its expiry
// could outlive its validity mid-session, so it is refetched instead.
const CacheSafetyMargin = 5 * time.Minute

// Cache memoizes issued tokens keyed by (user, room, role) so rapid remounts
// of a consultation view do not re-trigger issuance. It is safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*token.IssuedToken
}

// NewCache constructs an empty cache using the wall clock.
func NewCache() *Cache {
	return NewCacheWithClock(time.Now)
}

// NewCacheWithClock constructs an empty cache with an injected time source,
// enabling deterministic expiry tests.
func NewCacheWithClock(now func() time.Time) *Cache {
	return &Cache{
		now:     now,
		entries: make(map[string]*token.IssuedToken),
	}
}

// Get returns the cached token for the request key, or nil when absent or
// within the safety margin of its expiry. Stale entries are evicted.
func (c *Cache) Get(req token.Request) *token.IssuedToken {
	key := req.CacheKey()

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[key]
	if !ok {
		return nil
	}

	if !cached.ExpiresAt.After(c.now().Add(CacheSafetyMargin)) {
		delete(c.entries, key)
		return nil
	}

	return cached
}

// Set stores the issued token under the request key.
func (c *Cache) Set(req token.Request, issued *token.IssuedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[req.CacheKey()] = issued
}

// Clear removes all entries. Called on logout or role switch so stale
// moderator/participant claims cannot leak across identities.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*token.IssuedToken)
}
