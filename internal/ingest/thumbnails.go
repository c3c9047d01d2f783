package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ThumbnailFetcher downloads cover images, rate limited so a large ingest
// pass does not hammer the image CDN.
type ThumbnailFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewThumbnailFetcher(rps float64, wait time.Duration, logger *zerolog.Logger) *ThumbnailFetcher {
	if rps <= 0 {
		rps = 1
	}

	return &ThumbnailFetcher{
		client:  &http.Client{Timeout: wait},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Fetch saves the image at url to destPath.
func (f *ThumbnailFetcher) Fetch(ctx context.Context, url, destPath string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("thumbnail rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build thumbnail request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create thumbnail file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)

		return fmt.Errorf("write thumbnail: %w", err)
	}

	return out.Close()
}
