package config

import (
	"fmt"
	"time"
)

// Named deployment presets.
const (
	ProfileTest        = "test"
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// Profiles lists the names accepted by LoadProfile.
func Profiles() []string {
	return []string{ProfileTest, ProfileDevelopment, ProfileProduction}
}

// LoadProfile returns the preset for name without reading the environment.
// An empty name selects development.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	switch name {
	case "", ProfileDevelopment:
		// defaults are the development preset
	case ProfileTest:
		cfg.Environment = EnvTesting
		cfg.Profile = ProfileTest
		cfg.Debug = true
		cfg.Storage.Adapter = AdapterMemory
		cfg.Cache.TTL = 0
		cfg.Server.ShutdownTimeout = time.Second
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	case ProfileProduction:
		cfg.Environment = EnvProduction
		cfg.Profile = ProfileProduction
		cfg.Debug = false
		cfg.Storage.Adapter = AdapterRedis
		cfg.Cache.TTL = 10 * time.Second
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Server.CORSOrigin = ""
	default:
		return nil, fmt.Errorf("unknown profile %q (want one of %v)", name, Profiles())
	}
	return cfg, nil
}
