package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	CatalogPath   string
	AutosaveDelay time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{}

	// Recent-files catalog location
	cfg.CatalogPath = os.Getenv("GRAPHDOC_CATALOG_PATH")
	if cfg.CatalogPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.CatalogPath = filepath.Join(homeDir, ".graphdoc", "catalog.db")
	}

	// Ensure the directory exists
	dir := filepath.Dir(cfg.CatalogPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// Autosave debounce window
	cfg.AutosaveDelay = 50 * time.Millisecond
	if v := os.Getenv("GRAPHDOC_AUTOSAVE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GRAPHDOC_AUTOSAVE_DELAY: %w", err)
		}
		cfg.AutosaveDelay = d
	}

	return cfg, nil
}
