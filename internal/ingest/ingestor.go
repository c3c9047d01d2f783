// Package ingest walks the tracked channels, admits new candidates and
// downloads the accepted ones as audio with their cover image.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/admission"
	"github.com/ndemidov/tubecast/internal/platform/observability"
	"github.com/ndemidov/tubecast/internal/storage"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// VideoSource abstracts the yt-dlp wrapper for testing.
type VideoSource interface {
	ListChannel(ctx context.Context, channelURL string, limit int) ([]PlaylistEntry, error)
	Probe(ctx context.Context, videoURL string) (*VideoMeta, error)
	FetchAudio(ctx context.Context, videoURL, videoID, dir string) (string, int64, error)
}

// CoverFetcher saves a remote image to a local path.
type CoverFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// Admitter decides whether a candidate enters the catalog.
type Admitter interface {
	Admit(ctx context.Context, cand admission.Candidate, policy *storage.Channel, banned []storage.BannedWord, taxonomy []storage.Category) (admission.Decision, *storage.Item, error)
}

// Catalog is the slice of the store the ingest pass needs.
type Catalog interface {
	ListChannels(ctx context.Context) ([]storage.Channel, error)
	ListBannedWords(ctx context.Context) ([]storage.BannedWord, error)
	GetTaxonomy(ctx context.Context) ([]storage.Category, error)
	MarkDownloaded(ctx context.Context, id, file string, filesize int64, thumbnail string) error
	SetItemDestination(ctx context.Context, id, destinationID string) error
}

// Summary reports one ingest pass's outcome.
type Summary struct {
	Channels   int
	Candidates int
	Admitted   int
	Downloaded int
	Errored    int
}

type Ingestor struct {
	catalog  Catalog
	admitter Admitter
	source   VideoSource
	covers   CoverFetcher
	mediaDir string
	maxAge   time.Duration
	logger   *zerolog.Logger
}

func New(catalog Catalog, admitter Admitter, source VideoSource, covers CoverFetcher, mediaDir string, maxAgeDays int, logger *zerolog.Logger) *Ingestor {
	return &Ingestor{
		catalog:  catalog,
		admitter: admitter,
		source:   source,
		covers:   covers,
		mediaDir: mediaDir,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		logger:   logger,
	}
}

// Run executes one ingest pass over all tracked channels. A failing channel
// is logged and skipped so one dead feed cannot stall the rest.
func (in *Ingestor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	channels, err := in.catalog.ListChannels(ctx)
	if err != nil {
		return summary, fmt.Errorf("list channels: %w", err)
	}

	if len(channels) == 0 {
		in.logger.Warn().Msg("no channels to ingest")
		return summary, nil
	}

	banned, err := in.catalog.ListBannedWords(ctx)
	if err != nil {
		return summary, fmt.Errorf("list banned words: %w", err)
	}

	taxonomy, err := in.catalog.GetTaxonomy(ctx)
	if err != nil {
		return summary, fmt.Errorf("load taxonomy: %w", err)
	}

	for i := range channels {
		ch := &channels[i]

		if err := in.ingestChannel(ctx, ch, banned, taxonomy, &summary); err != nil {
			if ctx.Err() != nil {
				return summary, err
			}

			in.logger.Error().Err(err).Str("channel", ch.Name).Str("url", ch.URL).Msg("channel ingest failed")

			summary.Errored++

			continue
		}

		summary.Channels++
	}

	in.logger.Info().
		Int("channels", summary.Channels).
		Int("candidates", summary.Candidates).
		Int("admitted", summary.Admitted).
		Int("downloaded", summary.Downloaded).
		Int("errored", summary.Errored).
		Msg("ingest pass finished")

	return summary, nil
}

func (in *Ingestor) ingestChannel(ctx context.Context, ch *storage.Channel, banned []storage.BannedWord, taxonomy []storage.Category, summary *Summary) error {
	entries, err := in.source.ListChannel(ctx, ch.URL, ch.MaxVideos)
	if err != nil {
		return fmt.Errorf("list channel videos: %w", err)
	}

	in.logger.Info().Str("channel", ch.Name).Int("videos", len(entries)).Msg("channel listed")

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary.Candidates++

		meta, err := in.source.Probe(ctx, watchURLPrefix+entry.ID)
		if err != nil {
			in.logger.Error().Err(err).Str("video", entry.ID).Msg("probe failed")

			summary.Errored++

			continue
		}

		if in.maxAge > 0 && time.Since(meta.UploadDate) > in.maxAge {
			in.logger.Info().Str("video", meta.ID).Time("uploaded", meta.UploadDate).Msg("skipping video, too old")
			continue
		}

		decision, item, err := in.admitter.Admit(ctx, candidateFrom(meta), ch, banned, taxonomy)
		if err != nil {
			in.logger.Error().Err(err).Str("video", meta.ID).Msg("admission failed")

			summary.Errored++

			continue
		}

		observability.CandidatesSeen.WithLabelValues(decision.String()).Inc()

		if decision != admission.Accept {
			in.logger.Info().Str("video", meta.ID).Str("title", meta.Title).Stringer("decision", decision).Msg("candidate rejected")
			continue
		}

		summary.Admitted++

		if item.IsDownloaded {
			continue
		}

		if err := in.download(ctx, item, filepath.Join(in.mediaDir, ch.ID)); err != nil {
			in.logger.Error().Err(err).Str("item", item.ID).Str("name", item.Name).Msg("download failed")
			observability.ItemsDownloaded.WithLabelValues("error").Inc()

			summary.Errored++

			continue
		}

		observability.ItemsDownloaded.WithLabelValues("downloaded").Inc()

		summary.Downloaded++
	}

	return nil
}

// IngestURL admits and downloads a single video outside any channel policy.
// When destinationID is set the item is pointed at that destination channel.
func (in *Ingestor) IngestURL(ctx context.Context, videoURL, destinationID string) (*storage.Item, error) {
	meta, err := in.source.Probe(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}

	decision, item, err := in.admitter.Admit(ctx, candidateFrom(meta), nil, nil, nil)
	if err != nil {
		return nil, err
	}

	observability.CandidatesSeen.WithLabelValues(decision.String()).Inc()

	if decision != admission.Accept {
		return item, fmt.Errorf("video not admitted: %s", decision)
	}

	if destinationID != "" && item.DestinationID != destinationID {
		if err := in.catalog.SetItemDestination(ctx, item.ID, destinationID); err != nil {
			return item, err
		}

		item.DestinationID = destinationID
	}

	if !item.IsDownloaded {
		if err := in.download(ctx, item, filepath.Join(in.mediaDir, "adhoc")); err != nil {
			observability.ItemsDownloaded.WithLabelValues("error").Inc()
			return item, err
		}

		observability.ItemsDownloaded.WithLabelValues("downloaded").Inc()
	}

	return item, nil
}

func (in *Ingestor) download(ctx context.Context, item *storage.Item, dir string) error {
	path, size, err := in.source.FetchAudio(ctx, item.URL, item.ExternalVideoID, dir)
	if err != nil {
		return err
	}

	// A missing cover is not worth losing the audio over; processing
	// simply skips the embed step for items without a thumbnail.
	thumbPath := path + "-thumb.jpg"
	if item.ThumbnailURL == "" {
		thumbPath = ""
	} else if err := in.covers.Fetch(ctx, item.ThumbnailURL, thumbPath); err != nil {
		in.logger.Warn().Err(err).Str("item", item.ID).Msg("thumbnail fetch failed")
		thumbPath = ""
	}

	if err := in.catalog.MarkDownloaded(ctx, item.ID, path, size, thumbPath); err != nil {
		return err
	}

	item.File = path
	item.Filesize = size
	item.Thumbnail = thumbPath
	item.IsDownloaded = true

	return nil
}

func candidateFrom(meta *VideoMeta) admission.Candidate {
	return admission.Candidate{
		ExternalID:   meta.ID,
		URL:          meta.URL,
		Title:        meta.Title,
		Description:  meta.Description,
		Duration:     meta.Duration,
		ThumbnailURL: meta.ThumbnailURL,
	}
}
