package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ndemidov/tubecast/internal/storage"
)

type fakeCatalog struct {
	items []storage.Item
	reset []string
}

func (c *fakeCatalog) ListCleanupCandidates(context.Context) ([]storage.Item, error) {
	return c.items, nil
}

func (c *fakeCatalog) ResetDownloaded(_ context.Context, id string) error {
	c.reset = append(c.reset, id)
	return nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRunRemovesAllVariants(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vid.mp3")

	touch(t, base)
	touch(t, base+"-thumb.jpg")
	touch(t, base+"-conv.mp3")

	// The catalog points at the compressed variant after processing.
	catalog := &fakeCatalog{items: []storage.Item{{ID: "a", File: base + "-conv.mp3"}}}
	logger := zerolog.Nop()

	summary, err := New(catalog, &logger).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Cleaned: 1, Removed: 3}, summary)
	require.Equal(t, []string{"a"}, catalog.reset)

	for _, suffix := range fileSuffixes {
		_, err := os.Stat(base + suffix)
		require.True(t, os.IsNotExist(err), "expected %s%s removed", base, suffix)
	}
}

// RemoveFiles backs catalog deletion too: the files must be gone before the
// row is, since afterwards nothing points at them.
func TestRemoveFilesStandalone(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vid.mp3")

	touch(t, base)
	touch(t, base+"-thumb.jpg")

	removed, err := RemoveFiles(base)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = os.Stat(base)
	require.True(t, os.IsNotExist(err))

	removed, err = RemoveFiles(filepath.Join(dir, "never-downloaded.mp3"))
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRunMissingFilesAreSkipped(t *testing.T) {
	catalog := &fakeCatalog{items: []storage.Item{{ID: "a", File: filepath.Join(t.TempDir(), "gone.mp3")}}}
	logger := zerolog.Nop()

	summary, err := New(catalog, &logger).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Cleaned: 1}, summary)
	require.Equal(t, []string{"a"}, catalog.reset)
}
