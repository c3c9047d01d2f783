package process

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ndemidov/tubecast/internal/storage"
)

type fakeCatalog struct {
	items      []storage.Item
	taxonomy   []storage.Category
	attached   map[string][]string
	compressed map[string]string
	processed  map[string]bool
}

func newCatalog(items ...storage.Item) *fakeCatalog {
	return &fakeCatalog{
		items:      items,
		attached:   make(map[string][]string),
		compressed: make(map[string]string),
		processed:  make(map[string]bool),
	}
}

func (c *fakeCatalog) ListProcessable(context.Context) ([]storage.Item, error) {
	return c.items, nil
}

func (c *fakeCatalog) GetTaxonomy(context.Context) ([]storage.Category, error) {
	return c.taxonomy, nil
}

func (c *fakeCatalog) AttachCategories(_ context.Context, itemID string, categoryIDs []string) error {
	c.attached[itemID] = append(c.attached[itemID], categoryIDs...)
	return nil
}

func (c *fakeCatalog) UpdateCompression(_ context.Context, id, _ string, _ int64, bitrate string) error {
	c.compressed[id] = bitrate
	return nil
}

func (c *fakeCatalog) MarkProcessed(_ context.Context, id string) error {
	c.processed[id] = true
	return nil
}

// fakeTranscoder maps bitrate rung to resulting size.
type fakeTranscoder struct {
	sizes map[string]int64
	err   error
	calls []string
}

func (t *fakeTranscoder) Compress(_ context.Context, inputPath, bitrate string) (CompressResult, error) {
	t.calls = append(t.calls, bitrate)

	if t.err != nil {
		return CompressResult{}, t.err
	}

	return CompressResult{Path: inputPath + "-conv.mp3", Size: t.sizes[bitrate]}, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(context.Context, string, string, string) error {
	e.calls++
	return e.err
}

type noopClassifier struct{}

func (noopClassifier) Classify(string, []storage.Category) []storage.Category { return nil }

func newProcessor(catalog Catalog, transcoder Transcoder, embedder Embedder) *Processor {
	logger := zerolog.Nop()
	return New(catalog, noopClassifier{}, transcoder, embedder, MaxAudioSize, &logger)
}

func TestRunSmallFileSkipsCompression(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", File: "/m/a.mp3", Thumbnail: "/m/a-thumb.jpg", Filesize: 10_000_000})
	transcoder := &fakeTranscoder{}
	embedder := &fakeEmbedder{}

	summary, err := newProcessor(catalog, transcoder, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1}, summary)
	require.Empty(t, transcoder.calls)
	require.Equal(t, 1, embedder.calls)
	require.True(t, catalog.processed["a"])
}

func TestRunCompressesUntilUnderCeiling(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", File: "/m/a.mp3", Filesize: 80_000_000})
	transcoder := &fakeTranscoder{sizes: map[string]int64{"96k": 40_000_000}}
	embedder := &fakeEmbedder{}

	summary, err := newProcessor(catalog, transcoder, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Compressed: 1}, summary)
	require.Equal(t, []string{"96k"}, transcoder.calls)
	require.Equal(t, "96k", catalog.compressed["a"])
}

func TestRunAcceptsLowestRungStillOverCeiling(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", File: "/m/a.mp3", Filesize: 200_000_000})
	transcoder := &fakeTranscoder{sizes: map[string]int64{
		"96k": 90_000_000,
		"64k": 60_000_000,
	}}
	embedder := &fakeEmbedder{}

	summary, err := newProcessor(catalog, transcoder, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Compressed: 1}, summary)

	// Walked the whole ladder exactly once, then accepted the lowest rung.
	require.Equal(t, []string{"96k", "64k"}, transcoder.calls)
	require.Equal(t, "64k", catalog.compressed["a"])
	require.True(t, catalog.processed["a"])
}

func TestRunTranscodeFailureLeavesItemUnprocessed(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", File: "/m/a.mp3", Filesize: 80_000_000})
	transcoder := &fakeTranscoder{err: ErrTranscode}
	embedder := &fakeEmbedder{}

	summary, err := newProcessor(catalog, transcoder, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Errored: 1}, summary)
	require.False(t, catalog.processed["a"])
	require.Zero(t, embedder.calls)
}

func TestRunEmbedFailureIsNonFatal(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", File: "/m/a.mp3", Thumbnail: "/m/a-thumb.jpg", Filesize: 1_000_000})
	embedder := &fakeEmbedder{err: errors.New("corrupt thumbnail")}

	summary, err := newProcessor(catalog, &fakeTranscoder{}, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1}, summary)
	require.True(t, catalog.processed["a"])
}

func TestRunPerItemFailureIsolation(t *testing.T) {
	catalog := newCatalog(
		storage.Item{ID: "bad", File: "/m/bad.mp3", Filesize: 80_000_000},
		storage.Item{ID: "good", File: "/m/good.mp3", Filesize: 1_000_000},
	)
	transcoder := &fakeTranscoder{err: ErrTranscode}
	embedder := &fakeEmbedder{}

	summary, err := newProcessor(catalog, transcoder, embedder).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Errored: 1}, summary)
	require.True(t, catalog.processed["good"])
	require.False(t, catalog.processed["bad"])
}

func TestRunAttachesCategories(t *testing.T) {
	catalog := newCatalog(storage.Item{ID: "a", Name: "Live Concert", File: "/m/a.mp3"})
	catalog.taxonomy = []storage.Category{{ID: "cat-music", Name: "music", Keywords: []storage.Keyword{{Name: "concert"}}}}

	logger := zerolog.Nop()
	p := New(catalog, matchAllClassifier{}, &fakeTranscoder{}, &fakeEmbedder{}, MaxAudioSize, &logger)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"cat-music"}, catalog.attached["a"])
}

type matchAllClassifier struct{}

func (matchAllClassifier) Classify(_ string, taxonomy []storage.Category) []storage.Category {
	return taxonomy
}
