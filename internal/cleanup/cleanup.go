// Package cleanup removes media files of deactivated items so disk usage
// stays bounded. Catalog records are kept for audit, only files go.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/storage"
)

// fileSuffixes are the variants a downloaded item may leave on disk next to
// its base file.
var fileSuffixes = []string{"", "-thumb.jpg", "-conv.mp3", "-conv.opus"}

// Catalog is the slice of the store the cleanup pass needs.
type Catalog interface {
	ListCleanupCandidates(ctx context.Context) ([]storage.Item, error)
	ResetDownloaded(ctx context.Context, id string) error
}

// Summary reports one cleanup pass's outcome.
type Summary struct {
	Cleaned int
	Removed int
	Errored int
}

type Cleaner struct {
	catalog Catalog
	logger  *zerolog.Logger
}

func New(catalog Catalog, logger *zerolog.Logger) *Cleaner {
	return &Cleaner{catalog: catalog, logger: logger}
}

// Run removes files of all inactive downloaded items and clears their
// downloaded flag. Missing files are skipped silently, other removal
// failures leave the item downloaded for the next pass.
func (c *Cleaner) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	items, err := c.catalog.ListCleanupCandidates(ctx)
	if err != nil {
		return summary, fmt.Errorf("list cleanup candidates: %w", err)
	}

	if len(items) == 0 {
		return summary, nil
	}

	c.logger.Info().Int("items", len(items)).Msg("cleanup pass started")

	for i := range items {
		item := &items[i]

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		removed, err := c.removeFiles(item)
		if err != nil {
			c.logger.Error().Err(err).Str("item", item.ID).Str("name", item.Name).Msg("cleanup failed")

			summary.Errored++

			continue
		}

		if err := c.catalog.ResetDownloaded(ctx, item.ID); err != nil {
			summary.Errored++

			continue
		}

		summary.Cleaned++
		summary.Removed += removed

		c.logger.Info().Str("item", item.ID).Str("name", item.Name).Int("files", removed).Msg("item cleaned")
	}

	c.logger.Info().
		Int("cleaned", summary.Cleaned).
		Int("files_removed", summary.Removed).
		Int("errored", summary.Errored).
		Msg("cleanup pass finished")

	return summary, nil
}

func (c *Cleaner) removeFiles(item *storage.Item) (int, error) {
	return RemoveFiles(item.File)
}

// RemoveFiles deletes every on-disk variant belonging to the stored file
// path. Missing variants are skipped. Callers dropping a catalog row must
// call this first, the row is the only pointer to the files.
func RemoveFiles(file string) (int, error) {
	// Compression rewrites the stored path to the -conv.mp3 variant, so
	// strip it back to the base file before expanding the suffix set.
	base := strings.TrimSuffix(file, "-conv.mp3")

	var removed int

	for _, suffix := range fileSuffixes {
		path := base + suffix
		if path == "" {
			continue
		}

		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return removed, fmt.Errorf("remove %s: %w", path, err)
		}

		removed++
	}

	return removed, nil
}
