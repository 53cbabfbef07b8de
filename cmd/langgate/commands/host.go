package commands

import (
	"github.com/teranos/langgate/am"
	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/langserver"
	"github.com/teranos/langgate/logger"
)

// loadConfig loads the merged configuration, tolerating a missing config
// tree: commands still work on defaults.
func loadConfig() *am.Config {
	cfg, err := am.Load()
	if err != nil {
		logger.Logger.Warnw("Failed to load configuration, using defaults",
			"error", err)
		return nil
	}
	return cfg
}

// buildStore creates the active-server store named by registry.store.
func buildStore(cfg *am.Config) (langserver.ActiveStore, error) {
	if cfg == nil || cfg.Registry.Store == "" || cfg.Registry.Store == "memory" {
		return langserver.NewMemoryStore(), nil
	}

	switch cfg.Registry.Store {
	case "sqlite":
		store, err := langserver.NewSQLiteStore(cfg.Registry.SQLitePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open registry store at %s", cfg.Registry.SQLitePath)
		}
		return store, nil
	default:
		return nil, errors.Newf("unknown registry store %q (supported: memory, sqlite)", cfg.Registry.Store)
	}
}
