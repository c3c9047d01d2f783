package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// TagWriter embeds a cover image and a title tag into the audio file via
// ffmpeg stream copy. Thumbnails arrive in whatever format the upstream
// serves (often webp) and are converted to JPEG first.
type TagWriter struct {
	logger *zerolog.Logger
}

func NewTagWriter(logger *zerolog.Logger) *TagWriter {
	return &TagWriter{logger: logger}
}

func (w *TagWriter) Embed(ctx context.Context, audioPath, thumbPath, title string) error {
	coverPath, err := w.toJPEG(ctx, thumbPath)
	if err != nil {
		return fmt.Errorf("convert cover: %w", err)
	}

	taggedPath := audioPath + ".tagged.mp3"

	args := []string{
		"-i", audioPath,
		"-i", coverPath,
		"-y",
		"-map", "0:a",
		"-map", "1:v",
		"-c", "copy",
		"-id3v2_version", "3",
		"-metadata", "title=" + title,
		"-metadata:s:v", "title=Album cover",
		"-metadata:s:v", "comment=Cover (front)",
		taggedPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(taggedPath)

		return fmt.Errorf("%w: %s", ErrTranscode, stderr.String())
	}

	if err := os.Rename(taggedPath, audioPath); err != nil {
		_ = os.Remove(taggedPath)

		return fmt.Errorf("replace tagged file: %w", err)
	}

	return nil
}

// toJPEG converts the cover image to JPEG in place. Upstream thumbnails often
// carry a .jpg name with webp content, so the conversion always runs; ffmpeg
// detects the real format from the bytes.
func (w *TagWriter) toJPEG(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no thumbnail")
	}

	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	tmpPath := path + ".tmp.jpg"

	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", path, "-y", tmpPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmpPath)

		return "", fmt.Errorf("%w: %s", ErrTranscode, stderr.String())
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return "", fmt.Errorf("replace cover: %w", err)
	}

	return path, nil
}
