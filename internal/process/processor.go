// Package process drives downloaded items through compression, metadata
// embedding and the processed mark.
//
// Flag transitions happen only after their step fully completed, so an item
// never appears processed when it is not. Per-item failures are isolated: a
// failing item is counted and the pass moves on, and because the item keeps
// its prior flags it is re-selected on the next pass.
package process

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/platform/observability"
	"github.com/ndemidov/tubecast/internal/storage"
)

// MaxAudioSize is the filesize ceiling above which compression kicks in.
const MaxAudioSize = 50_000_000

// bitrateLadder is tried in order; the lowest rung is accepted even when the
// result still exceeds the ceiling, so compression always terminates.
var bitrateLadder = []string{"96k", "64k"}

type Transcoder interface {
	Compress(ctx context.Context, inputPath, bitrate string) (CompressResult, error)
}

type Embedder interface {
	Embed(ctx context.Context, audioPath, thumbPath, title string) error
}

type Classifier interface {
	Classify(text string, taxonomy []storage.Category) []storage.Category
}

// Catalog is the slice of the store the processing pass needs.
type Catalog interface {
	ListProcessable(ctx context.Context) ([]storage.Item, error)
	GetTaxonomy(ctx context.Context) ([]storage.Category, error)
	AttachCategories(ctx context.Context, itemID string, categoryIDs []string) error
	UpdateCompression(ctx context.Context, id, file string, filesize int64, bitrate string) error
	MarkProcessed(ctx context.Context, id string) error
}

// Summary reports one pass's outcome to the operator.
type Summary struct {
	Processed  int
	Compressed int
	Errored    int
}

type Processor struct {
	catalog    Catalog
	classifier Classifier
	transcoder Transcoder
	embedder   Embedder
	maxSize    int64
	compress   bool
	logger     *zerolog.Logger
}

func New(catalog Catalog, classifier Classifier, transcoder Transcoder, embedder Embedder, maxSize int64, logger *zerolog.Logger) *Processor {
	if maxSize <= 0 {
		maxSize = MaxAudioSize
	}

	return &Processor{
		catalog:    catalog,
		classifier: classifier,
		transcoder: transcoder,
		embedder:   embedder,
		maxSize:    maxSize,
		compress:   true,
		logger:     logger,
	}
}

// SetCompressionEnabled toggles the compression step (operator switch).
func (p *Processor) SetCompressionEnabled(enabled bool) {
	p.compress = enabled
}

// Run executes one processing pass over all downloaded, unprocessed items.
// Only resource-level failures (listing the work set) abort the pass.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	items, err := p.catalog.ListProcessable(ctx)
	if err != nil {
		return summary, fmt.Errorf("list processable items: %w", err)
	}

	if len(items) == 0 {
		return summary, nil
	}

	taxonomy, err := p.catalog.GetTaxonomy(ctx)
	if err != nil {
		return summary, fmt.Errorf("load taxonomy: %w", err)
	}

	p.logger.Info().Int("items", len(items)).Msg("processing pass started")

	for i := range items {
		compressed, err := p.processItem(ctx, &items[i], taxonomy)
		if err != nil {
			p.logger.Error().Err(err).Str("item", items[i].ID).Str("name", items[i].Name).Msg("processing failed")
			observability.ItemsProcessed.WithLabelValues("error").Inc()

			summary.Errored++

			continue
		}

		if compressed {
			summary.Compressed++
		}

		observability.ItemsProcessed.WithLabelValues("processed").Inc()

		summary.Processed++
	}

	p.logger.Info().
		Int("processed", summary.Processed).
		Int("compressed", summary.Compressed).
		Int("errored", summary.Errored).
		Msg("processing pass finished")

	return summary, nil
}

func (p *Processor) processItem(ctx context.Context, item *storage.Item, taxonomy []storage.Category) (bool, error) {
	if err := p.attachCategories(ctx, item, taxonomy); err != nil {
		return false, err
	}

	var compressed bool

	if p.compress && item.Filesize > p.maxSize {
		result, bitrate, err := p.compressItem(ctx, item)
		if err != nil {
			// Transient tool failure: the item keeps its flags and is
			// retried on the next pass.
			return false, err
		}

		if err := p.catalog.UpdateCompression(ctx, item.ID, result.Path, result.Size, bitrate); err != nil {
			return false, err
		}

		item.File = result.Path
		item.Filesize = result.Size
		compressed = true
	}

	if item.Thumbnail != "" {
		if err := p.embedder.Embed(ctx, item.File, item.Thumbnail, item.Name); err != nil {
			// Embedding failure is non-fatal: logged, not retried.
			p.logger.Warn().Err(err).Str("item", item.ID).Msg("metadata embedding failed")
		}
	}

	if err := p.catalog.MarkProcessed(ctx, item.ID); err != nil {
		return compressed, err
	}

	return compressed, nil
}

func (p *Processor) attachCategories(ctx context.Context, item *storage.Item, taxonomy []storage.Category) error {
	matched := p.classifier.Classify(item.Name+" "+item.Description, taxonomy)
	if len(matched) == 0 {
		return nil
	}

	ids := make([]string, len(matched))
	for i, c := range matched {
		ids[i] = c.ID
	}

	return p.catalog.AttachCategories(ctx, item.ID, ids)
}

// compressItem walks the bitrate ladder until the output fits under the
// ceiling, accepting the lowest rung unconditionally.
func (p *Processor) compressItem(ctx context.Context, item *storage.Item) (CompressResult, string, error) {
	var (
		result  CompressResult
		bitrate string
	)

	for _, rung := range bitrateLadder {
		res, err := p.transcoder.Compress(ctx, item.File, rung)
		if err != nil {
			return CompressResult{}, "", err
		}

		result, bitrate = res, rung

		if res.Size <= p.maxSize {
			break
		}
	}

	return result, bitrate, nil
}
