package am

import (
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/langgate/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Gateway port: 0 is invalid (omit for default), negative is invalid
	if c.Gateway.Port != nil && *c.Gateway.Port == 0 {
		return errors.New("gateway.port cannot be 0 (omit for default port 9000)")
	}
	if c.Gateway.Port != nil && *c.Gateway.Port < 0 {
		return errors.Newf("gateway.port must be positive, got %d", *c.Gateway.Port)
	}
	if c.Gateway.Port != nil && *c.Gateway.Port > 65535 {
		return errors.Newf("gateway.port must be <= 65535, got %d", *c.Gateway.Port)
	}

	// Rate limits: 0 = unlimited, negative = invalid
	if c.Gateway.RatePerSecond < 0 {
		return errors.Newf("gateway.rate_per_second must be >= 0, got %f", c.Gateway.RatePerSecond)
	}
	if c.Gateway.RateBurst < 0 {
		return errors.Newf("gateway.rate_burst must be >= 0, got %d", c.Gateway.RateBurst)
	}

	// Message size: 0 = default, negative = invalid
	if c.Gateway.MaxMessageSize < 0 {
		return errors.Newf("gateway.max_message_size must be >= 0, got %d", c.Gateway.MaxMessageSize)
	}

	// Log theme must be one the encoder knows
	if c.Gateway.LogTheme != "" && c.Gateway.LogTheme != "gruvbox" && c.Gateway.LogTheme != "everforest" {
		return errors.Newf("gateway.log_theme must be gruvbox or everforest, got %q", c.Gateway.LogTheme)
	}

	// Per-language launch config
	for language, lang := range c.Languages {
		if lang.MinVersion != "" {
			if _, err := semver.NewVersion(lang.MinVersion); err != nil {
				return errors.Wrapf(err, "languages.%s.min_version is not valid semver: %q", language, lang.MinVersion)
			}
		}
	}

	// Registry store backend
	switch c.Registry.Store {
	case "", "memory":
		// in-memory is the default
	case "sqlite":
		if c.Registry.SQLitePath == "" {
			return errors.New("registry.sqlite_path cannot be empty when registry.store is sqlite")
		}
	default:
		return errors.Newf("registry.store must be memory or sqlite, got %q", c.Registry.Store)
	}

	return nil
}
