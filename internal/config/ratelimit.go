package config

import (
	"github.com/spf13/viper"

	"awsinventory/internal/aws/ratelimit"
)

// DefaultMaxRetries is the SDK retry budget for a single request. Throttled
// requests are retried with the SDK's own backoff.
const DefaultMaxRetries = 10

// RateLimit resolves request pacing from the loaded configuration.
// app.service_limits holds per-service overrides keyed by SDK service name.
func RateLimit() ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	if viper.IsSet("app.requests_per_second") {
		cfg.RequestsPerSecond = viper.GetFloat64("app.requests_per_second")
	}
	for service := range viper.GetStringMap("app.service_limits") {
		cfg.ServiceLimits[service] = viper.GetFloat64("app.service_limits." + service)
	}
	return cfg
}

// MaxRetries resolves the SDK retry budget
func MaxRetries() int {
	if n := viper.GetInt("app.max_retries"); n >= 0 {
		return n
	}
	return DefaultMaxRetries
}
