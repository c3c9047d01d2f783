package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/platform/observability"
)

// ErrTranscode wraps ffmpeg failures so callers can treat them as transient.
var ErrTranscode = errors.New("ffmpeg error")

// CompressResult describes the output of one transcode run.
type CompressResult struct {
	Path string
	Size int64
}

// FFmpeg invokes the external ffmpeg binary for audio compression. The
// compressed copy is written next to the input with a "-conv.mp3" suffix, so
// re-running on an already-compressed item just overwrites the same output.
type FFmpeg struct {
	logger *zerolog.Logger
}

func NewFFmpeg(logger *zerolog.Logger) *FFmpeg {
	return &FFmpeg{logger: logger}
}

func (f *FFmpeg) Compress(ctx context.Context, inputPath, bitrate string) (CompressResult, error) {
	outputPath := inputPath + "-conv.mp3"

	args := []string{
		"-i", inputPath,
		"-y",
		"-ac", "2",
		"-b:a", bitrate,
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	defer func() {
		observability.ToolDuration.WithLabelValues("ffmpeg").Observe(time.Since(start).Seconds())
	}()

	if err := cmd.Run(); err != nil {
		f.logger.Error().Err(err).Str("input", inputPath).Str("bitrate", bitrate).
			Str("stderr", stderr.String()).Msg("ffmpeg failed")

		return CompressResult{}, fmt.Errorf("%w: %s", ErrTranscode, stderr.String())
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return CompressResult{}, fmt.Errorf("stat compressed file: %w", err)
	}

	return CompressResult{Path: outputPath, Size: info.Size()}, nil
}
