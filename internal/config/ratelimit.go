package config

import "time"

// RateLimitConfig configures the Redis token bucket that guards the
// reconcile endpoint.  A customer hammering "save" gets a 429 long before
// the single database connection becomes the bottleneck.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // bucket size, also the burst
	RefillTokens   int           // tokens added per RefillInterval
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets expire after this long
	KeyStrategy    string        // ip, user, route, ip_user, user_route
	Prefix         string
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Out of range values are
// clamped rather than rejected.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	cfg.clamp()
	return cfg
}

func (c *RateLimitConfig) clamp() {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// a bucket must outlive a few refills or it resets to full on every call
	c.TTL = max(c.TTL, 5*c.RefillInterval)
}
