package cache

import (
	"time"
)

// CacheEntry represents a cached DSIS response body.
type CacheEntry struct {
	// Data is the raw JSON response body
	Data []byte `json:"data"`

	// URL the body was fetched from
	URL string `json:"url"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for body. A zero ttl leaves Expires unset so the
// manager applies its default TTL on Set.
func NewEntry(url string, body []byte, ttl time.Duration) *CacheEntry {
	now := time.Now()
	entry := &CacheEntry{
		Data:     body,
		URL:      url,
		CachedAt: now,
	}
	if ttl > 0 {
		entry.Expires = now.Add(ttl)
	}
	return entry
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
