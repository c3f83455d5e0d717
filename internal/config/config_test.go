package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// Test case 1: Environment variables not set
	os.Unsetenv("GRAPHDOC_CATALOG_PATH")
	os.Unsetenv("GRAPHDOC_AUTOSAVE_DELAY")
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Contains(t, cfg.CatalogPath, ".graphdoc/catalog.db")
	assert.Equal(t, 50*time.Millisecond, cfg.AutosaveDelay)

	// Test case 2: Environment variables set
	os.Setenv("GRAPHDOC_CATALOG_PATH", "/tmp/test-catalog.db")
	os.Setenv("GRAPHDOC_AUTOSAVE_DELAY", "200ms")
	defer os.Unsetenv("GRAPHDOC_CATALOG_PATH")
	defer os.Unsetenv("GRAPHDOC_AUTOSAVE_DELAY")
	cfg, err = Load()
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/test-catalog.db", cfg.CatalogPath)
	assert.Equal(t, 200*time.Millisecond, cfg.AutosaveDelay)

	// Test case 3: Bad duration
	os.Setenv("GRAPHDOC_AUTOSAVE_DELAY", "soon")
	_, err = Load()
	assert.Error(t, err)
}
