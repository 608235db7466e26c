package auth

import "time"

// Cached exposes the stored token regardless of freshness.
func Cached(c *TokenCache) (string, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return "", time.Time{}, false
	}
	return c.current.value, c.current.expiry, true
}
