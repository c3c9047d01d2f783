// Package app wires the configured service modes together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/admission"
	"github.com/ndemidov/tubecast/internal/cleanup"
	"github.com/ndemidov/tubecast/internal/ingest"
	"github.com/ndemidov/tubecast/internal/platform/config"
	"github.com/ndemidov/tubecast/internal/platform/observability"
	"github.com/ndemidov/tubecast/internal/platform/worker"
	"github.com/ndemidov/tubecast/internal/process"
	"github.com/ndemidov/tubecast/internal/publish"
	"github.com/ndemidov/tubecast/internal/schedule"
	"github.com/ndemidov/tubecast/internal/storage"
	"github.com/ndemidov/tubecast/internal/taxonomy"
)

// ingestLockID is the advisory lock serializing ingest passes across
// replicas.
const ingestLockID = int64(7402)

type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{cfg: cfg, database: database, logger: logger}
}

func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

func (a *App) newScheduler() *schedule.Scheduler {
	return schedule.New(a.database, a.cfg.PublishInterval, a.logger)
}

func (a *App) newIngestor() *ingest.Ingestor {
	classifier := taxonomy.New()
	filter := admission.New(a.database, classifier, a.newScheduler(), a.logger)
	downloader := ingest.NewDownloader(a.cfg.AudioQuality, a.cfg.ToolTimeout, a.logger)
	covers := ingest.NewThumbnailFetcher(a.cfg.ThumbFetchRPS, a.cfg.ThumbFetchWait, a.logger)

	return ingest.New(a.database, filter, downloader, covers, a.cfg.MediaDir, a.cfg.MaxVideoAge, a.logger)
}

func (a *App) newProcessor() *process.Processor {
	transcoder := process.NewFFmpeg(a.logger)
	tagger := process.NewTagWriter(a.logger)

	return process.New(a.database, taxonomy.New(), transcoder, tagger, a.cfg.MaxAudioSize, a.logger)
}

func (a *App) newPoster() (*publish.Poster, error) {
	api, err := a.botAPI()
	if err != nil {
		return nil, err
	}

	sender := publish.NewSender(api, a.logger)

	return publish.NewPoster(a.database, sender, a.cfg.MaxFailedPosts, a.logger), nil
}

func (a *App) botAPI() (*tgbotapi.BotAPI, error) {
	if a.cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not configured")
	}

	api, err := tgbotapi.NewBotAPIWithClient(a.cfg.BotToken, tgbotapi.APIEndpoint, telegramClient(a.cfg.TelegramTimeout))
	if err != nil {
		return nil, fmt.Errorf("init bot api: %w", err)
	}

	return api, nil
}

// telegramClient bounds every Bot API call, audio uploads included, so a
// hung send cannot stall the posting loop.
func telegramClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &http.Client{Timeout: timeout}
}

// sessionLocker serializes a pass across replicas via a session advisory
// lock held on a single pinned connection.
type sessionLocker interface {
	WithSessionLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) (bool, error)
}

// lockedPass wraps pass so only one replica runs it at a time; when the lock
// is held elsewhere the pass is skipped, not failed.
func lockedPass(locker sessionLocker, lockID int64, logger *zerolog.Logger, pass worker.PassFunc) worker.PassFunc {
	return func(ctx context.Context) error {
		ran, err := locker.WithSessionLock(ctx, lockID, pass)
		if err != nil {
			return err
		}

		if !ran {
			logger.Info().Int64("lock_id", lockID).Msg("pass is running elsewhere, skipping")
		}

		return nil
	}
}

// RunIngest walks all channels on an interval. An advisory lock keeps
// concurrent replicas from racing over the same feeds.
func (a *App) RunIngest(ctx context.Context, once bool) error {
	ingestor := a.newIngestor()

	return worker.Loop(ctx, worker.Config{
		Name:         "ingest",
		PollInterval: a.cfg.IngestInterval,
		Pass: lockedPass(a.database, ingestLockID, a.logger, func(ctx context.Context) error {
			_, err := ingestor.Run(ctx)
			return err
		}),
		Once:   once,
		Logger: a.logger,
	})
}

func (a *App) RunProcess(ctx context.Context, once bool) error {
	processor := a.newProcessor()

	return worker.Loop(ctx, worker.Config{
		Name:         "process",
		PollInterval: a.cfg.ProcessInterval,
		Pass: func(ctx context.Context) error {
			_, err := processor.Run(ctx)
			return err
		},
		Once:   once,
		Logger: a.logger,
	})
}

// RunSchedule rebases and reshuffles the pending queue once.
func (a *App) RunSchedule(ctx context.Context) error {
	_, err := a.newScheduler().ReshufflePending(ctx)
	return err
}

func (a *App) RunPost(ctx context.Context, once bool) error {
	poster, err := a.newPoster()
	if err != nil {
		return err
	}

	return worker.Loop(ctx, worker.Config{
		Name:         "post",
		PollInterval: a.cfg.PostInterval,
		Pass:         poster.Run,
		Once:         once,
		Logger:       a.logger,
	})
}

func (a *App) RunCleanup(ctx context.Context, once bool) error {
	cleaner := cleanup.New(a.database, a.logger)

	return worker.Loop(ctx, worker.Config{
		Name:         "cleanup",
		PollInterval: a.cfg.CleanupInterval,
		Pass: func(ctx context.Context) error {
			_, err := cleaner.Run(ctx)
			return err
		},
		Once:   once,
		Logger: a.logger,
	})
}

func (a *App) RunBot(ctx context.Context) error {
	api, err := a.botAPI()
	if err != nil {
		return err
	}

	sender := publish.NewSender(api, a.logger)
	poster := publish.NewPoster(a.database, sender, a.cfg.MaxFailedPosts, a.logger)
	bot := publish.NewBot(api, a.database, a.newScheduler(), a.newIngestor(), poster, a.cfg.AdminIDs, a.logger)

	return bot.Run(ctx)
}
