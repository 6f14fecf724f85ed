package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/daemon/store"
	"github.com/jamesainslie/scout/pkg/daemon/store/sqlstore"
	"github.com/jamesainslie/scout/pkg/scout/config"
)

// storePath returns the configured database location for the backend.
func storePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return config.DefaultDBPath(cfg.Store.Backend)
}

// lockDir returns the directory holding a backend lock file, if any.
func lockDir(cfg *config.Config) string {
	if cfg.Store.Backend == "badger" {
		return storePath(cfg)
	}
	return ""
}

// openPort opens the configured record store. The returned func closes it.
func openPort(cfg *config.Config) (indexer.Port, func() error, error) {
	if cfg.Store.Backend == "memory" {
		return indexer.NewMemory(), func() error { return nil }, nil
	}

	path := storePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating store directory: %w", err)
	}

	switch cfg.Store.Backend {
	case "badger":
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := sqlstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Store.Backend)
	}
}
