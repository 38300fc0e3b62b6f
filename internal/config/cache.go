package config

import "time"

// CacheConfig defines settings for the public catalogue cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  Methods
// lists the HTTP methods to cache, TTL the lifetime of an entry.  All keys are
// written under Prefix so that a committed reservation change can drop the
// whole catalogue with one prefix scan.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // path, method_path or route_query
	Prefix       string
	MaxBodyBytes int
	ScanCount    int64 // batch size used when invalidating by prefix
}

// LoadCacheConfig reads CACHE_* variables.  Methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      map[string]bool{},
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "boxes-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		ScanCount:    int64(envInt("CACHE_SCAN_COUNT", 200)),
	}
	for _, m := range envList("CACHE_METHODS", "GET") {
		cfg.Methods[m] = true
	}
	return cfg
}
