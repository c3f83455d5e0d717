package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupTestCatalog(t *testing.T) *Catalog {
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	assert.NoError(t, err)
	assert.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTouchAndRecent(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	assert.NoError(t, c.Touch(ctx, "/tmp/a.xml", 3, 2))
	// keep the two timestamps distinct even on a coarse clock
	time.Sleep(2 * time.Millisecond)
	assert.NoError(t, c.Touch(ctx, "/tmp/b.xml", 1, 0))

	records, err := c.Recent(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "/tmp/b.xml", records[0].Path, "most recent first")
	assert.Equal(t, 3, records[1].EntityCount)
	assert.Equal(t, 2, records[1].EdgeCount)
}

func TestTouchUpserts(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	assert.NoError(t, c.Touch(ctx, "/tmp/a.xml", 1, 0))
	assert.NoError(t, c.Touch(ctx, "/tmp/a.xml", 5, 4))

	records, err := c.Recent(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 1, "same path stays one row")
	assert.Equal(t, 5, records[0].EntityCount)
	assert.Equal(t, 4, records[0].EdgeCount)
}

func TestRecentLimit(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, c.Touch(ctx, filepath.Join("/tmp", string(rune('a'+i))+".xml"), i, 0))
	}

	records, err := c.Recent(ctx, 3)
	assert.NoError(t, err)
	assert.Len(t, records, 3)

	// non-positive limit falls back to the default
	records, err = c.Recent(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestForget(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	assert.NoError(t, c.Touch(ctx, "/tmp/a.xml", 1, 0))
	assert.NoError(t, c.Forget(ctx, "/tmp/a.xml"))

	records, err := c.Recent(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 0)

	// forgetting an unknown path is a no-op
	assert.NoError(t, c.Forget(ctx, "/tmp/missing.xml"))
}
