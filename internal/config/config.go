package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig holds the global configuration for the application
type GlobalConfig struct {
	// Profile is the AWS profile to use
	Profile string

	// Role is assumed in the profile's account before collecting, when set
	Role string

	// MaxWorkers bounds the number of units of work collected concurrently
	MaxWorkers int

	// UnitTimeout bounds a single (service, region) collection
	UnitTimeout time.Duration

	// LogFormat is the format for logging
	LogFormat string

	// LogLevel is the minimum level written to the log
	LogLevel string
}

// Config is the global configuration instance
var Config = &GlobalConfig{
	Profile:    "default",
	MaxWorkers: runtime.NumCPU() * 4, // units are I/O bound
}

// Load resolves Config from the bound flags, environment, config file and
// defaults
func Load() error {
	timeout := viper.GetDuration("app.unit_timeout")
	if timeout < 0 {
		return fmt.Errorf("app.unit_timeout must not be negative: %s", timeout)
	}
	workers := viper.GetInt("app.max_workers")
	if workers < 1 {
		return fmt.Errorf("app.max_workers must be at least 1, got %d", workers)
	}

	Config.Profile = viper.GetString("aws.profile")
	Config.Role = viper.GetString("aws.role")
	Config.MaxWorkers = workers
	Config.UnitTimeout = timeout
	Config.LogFormat = viper.GetString("app.log_format")
	Config.LogLevel = viper.GetString("app.log_level")
	return nil
}
