package config

import "time"

// RateLimitConfig controls the Redis token-bucket limiter.  Each
// client IP gets Capacity tokens, refilled RefillTokens at a time
// every RefillInterval.  TTL expires idle buckets.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// LoadRateLimitConfig builds a RateLimitConfig from the environment.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        getenv("RATE_LIMIT_ENABLED", "true") == "true",
		Capacity:       atoiDefault(getenv("RATE_LIMIT_CAPACITY", "60"), 60),
		RefillTokens:   atoiDefault(getenv("RATE_LIMIT_REFILL_TOKENS", "1"), 1),
		RefillInterval: parseDur(getenv("RATE_LIMIT_REFILL_INTERVAL", "1s")),
		TTL:            parseDur(getenv("RATE_LIMIT_TTL", "10m")),
	}
}

func atoiDefault(s string, def int) int {
	if n := atoi(s); n > 0 {
		return n
	}
	return def
}
