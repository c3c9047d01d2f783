package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/platform/observability"
	"github.com/ndemidov/tubecast/internal/storage"
)

// AudioSender abstracts the Telegram transport for testing.
type AudioSender interface {
	SendAudio(ctx context.Context, audio Audio) error
}

// Catalog is the slice of the store the posting pass needs.
type Catalog interface {
	NextPostable(ctx context.Context) (*storage.Item, error)
	GetChannel(ctx context.Context, id string) (*storage.Channel, error)
	GetDestination(ctx context.Context, id string) (*storage.Destination, error)
	ListItemCategories(ctx context.Context, itemID string) ([]storage.Category, error)
	MarkPosted(ctx context.Context, id string, postedAt time.Time) error
	RecordPostFailure(ctx context.Context, id string, maxFailures int) (int, bool, error)
	CountPendingItems(ctx context.Context) (int64, error)
}

// Poster publishes the next due item to its destination channel.
type Poster struct {
	catalog     Catalog
	sender      AudioSender
	maxFailures int
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewPoster(catalog Catalog, sender AudioSender, maxFailures int, logger *zerolog.Logger) *Poster {
	return &Poster{
		catalog:     catalog,
		sender:      sender,
		maxFailures: maxFailures,
		now:         time.Now,
		logger:      logger,
	}
}

// Run posts at most one item per pass, keeping the channel feed paced by the
// poll interval rather than flooding it.
func (p *Poster) Run(ctx context.Context) error {
	if pending, err := p.catalog.CountPendingItems(ctx); err == nil {
		observability.PublishQueueSize.Set(float64(pending))
	}

	item, err := p.catalog.NextPostable(ctx)
	if err != nil {
		return fmt.Errorf("next postable item: %w", err)
	}

	if item == nil {
		p.logger.Debug().Msg("nothing to post")
		return nil
	}

	if item.DestinationID == "" {
		return p.recordFailure(ctx, item, fmt.Errorf("item has no destination channel"))
	}

	dest, err := p.catalog.GetDestination(ctx, item.DestinationID)
	if err != nil {
		return fmt.Errorf("load destination: %w", err)
	}

	// Destinations with auto posting off hold their queue until the
	// operator requests a post, which flags the item as awaiting.
	if !dest.AutoPost && !item.IsAwaitingPost {
		p.logger.Debug().Str("destination", dest.Name).Msg("auto posting disabled, holding queue")
		return nil
	}

	var channel *storage.Channel

	if item.ChannelID != "" {
		channel, err = p.catalog.GetChannel(ctx, item.ChannelID)
		if err != nil {
			return fmt.Errorf("load channel: %w", err)
		}
	}

	categories, err := p.catalog.ListItemCategories(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load item categories: %w", err)
	}

	audio := Audio{
		ChatID:        dest.ExternalID,
		FilePath:      item.File,
		ThumbnailPath: item.Thumbnail,
		Title:         item.Name,
		Caption:       Caption(item, channel, categories),
	}

	if err := p.sender.SendAudio(ctx, audio); err != nil {
		return p.recordFailure(ctx, item, err)
	}

	if err := p.catalog.MarkPosted(ctx, item.ID, p.now()); err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}

	observability.ItemsPosted.WithLabelValues("posted").Inc()

	p.logger.Info().Str("item", item.ID).Str("name", item.Name).Int64("chat_id", dest.ExternalID).Msg("item posted")

	return nil
}

func (p *Poster) recordFailure(ctx context.Context, item *storage.Item, cause error) error {
	observability.ItemsPosted.WithLabelValues("error").Inc()

	failed, deactivated, err := p.catalog.RecordPostFailure(ctx, item.ID, p.maxFailures)
	if err != nil {
		return fmt.Errorf("record post failure: %w", err)
	}

	event := p.logger.Error().Err(cause).Str("item", item.ID).Str("name", item.Name).Int("failed_times", failed)

	if deactivated {
		event.Msg("item deactivated after repeated post failures")
	} else {
		event.Msg("post failed")
	}

	return nil
}
