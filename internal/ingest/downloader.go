package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/platform/observability"
)

// ErrYtDlp wraps any yt-dlp invocation failure.
var ErrYtDlp = errors.New("yt-dlp error")

// PlaylistEntry is one video reference from a channel listing.
type PlaylistEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// VideoMeta is the probed metadata of a single video.
type VideoMeta struct {
	ID           string
	URL          string
	Title        string
	Description  string
	Duration     int
	UploadDate   time.Time
	ThumbnailURL string
}

// Downloader shells out to yt-dlp for channel listings, metadata probes and
// audio extraction.
type Downloader struct {
	quality string
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewDownloader(quality string, timeout time.Duration, logger *zerolog.Logger) *Downloader {
	return &Downloader{quality: quality, timeout: timeout, logger: logger}
}

// ListChannel returns up to limit of the channel's newest videos without
// resolving each one.
func (d *Downloader) ListChannel(ctx context.Context, channelURL string, limit int) ([]PlaylistEntry, error) {
	out, err := d.run(ctx, "--dump-json", "--flat-playlist",
		"--playlist-end", fmt.Sprint(limit), channelURL)
	if err != nil {
		return nil, err
	}

	var entries []PlaylistEntry

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry PlaylistEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			d.logger.Warn().Err(err).Msg("skipping unparsable playlist entry")
			continue
		}

		if entry.ID != "" {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Probe resolves full metadata for a single video.
func (d *Downloader) Probe(ctx context.Context, videoURL string) (*VideoMeta, error) {
	out, err := d.run(ctx, "--dump-json", "--no-playlist", videoURL)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Duration    float64 `json:"duration"`
		UploadDate  string  `json:"upload_date"`
		Thumbnail   string  `json:"thumbnail"`
		WebpageURL  string  `json:"webpage_url"`
	}

	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse video metadata: %w", err)
	}

	meta := &VideoMeta{
		ID:           raw.ID,
		URL:          raw.WebpageURL,
		Title:        raw.Title,
		Description:  raw.Description,
		Duration:     int(raw.Duration),
		UploadDate:   time.Now(),
		ThumbnailURL: raw.Thumbnail,
	}

	if meta.URL == "" {
		meta.URL = videoURL
	}

	// upload_date comes back as YYYYMMDD; a missing or malformed value
	// falls back to now so the age cap never rejects on bad metadata.
	if raw.UploadDate != "" {
		if t, err := dateparse.ParseAny(raw.UploadDate); err == nil {
			meta.UploadDate = t
		} else {
			d.logger.Warn().Str("upload_date", raw.UploadDate).Str("video", raw.ID).Msg("unparsable upload date")
		}
	}

	return meta, nil
}

// FetchAudio extracts a video's audio track as mp3 into dir. The output file
// is keyed by the video id, so re-downloads overwrite rather than accumulate.
func (d *Downloader) FetchAudio(ctx context.Context, videoURL, videoID, dir string) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create media dir: %w", err)
	}

	template := filepath.Join(dir, "%(id)s.%(ext)s")

	if _, err := d.run(ctx,
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", d.quality,
		"--no-playlist",
		"-o", template,
		videoURL,
	); err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, videoID+".mp3")

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("downloaded file missing: %w", err)
	}

	return path, info.Size(), nil
}

func (d *Downloader) run(ctx context.Context, args ...string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		observability.ToolDuration.WithLabelValues("yt-dlp").Observe(time.Since(start).Seconds())
	}()

	args = append([]string{"--no-warnings"}, args...)

	d.logger.Debug().Strs("args", args).Msg("running yt-dlp")

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrYtDlp, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
