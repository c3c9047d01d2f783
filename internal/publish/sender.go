package publish

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/platform/worker"
)

// sendRetries bounds retries on Telegram rate limiting.
const sendRetries = 3

// Audio is one outgoing audio post.
type Audio struct {
	ChatID        int64
	FilePath      string
	ThumbnailPath string
	Title         string
	Caption       string
}

// Sender delivers audio posts through the bot API, retrying on 429.
type Sender struct {
	api    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

func NewSender(api *tgbotapi.BotAPI, logger *zerolog.Logger) *Sender {
	return &Sender{api: api, logger: logger}
}

func (s *Sender) SendAudio(ctx context.Context, audio Audio) error {
	msg := tgbotapi.NewAudio(audio.ChatID, tgbotapi.FilePath(audio.FilePath))
	msg.Caption = audio.Caption
	msg.Title = audio.Title

	if audio.ThumbnailPath != "" {
		msg.Thumb = tgbotapi.FilePath(audio.ThumbnailPath)
	}

	var lastErr error

	for attempt := 1; attempt <= sendRetries; attempt++ {
		_, err := s.api.Send(msg)
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRateLimited(err) {
			return err
		}

		wait := retryAfter(attempt)
		s.logger.Warn().Dur("wait", wait).Int("attempt", attempt).Msg("rate limited by telegram")

		if err := worker.Wait(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "retry after")
}

func retryAfter(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 3 * time.Second
	case 2:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}
