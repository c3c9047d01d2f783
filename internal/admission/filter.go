// Package admission decides whether an ingested candidate enters the active
// catalog, before any download is attempted.
package admission

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/ndemidov/tubecast/internal/storage"
)

// Decision is the outcome of the admission checks.
type Decision int

const (
	Accept Decision = iota
	RejectDuration
	RejectBanned
	RejectDuplicateDownloaded
	RejectInactive
	RejectOffTopic
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case RejectDuration:
		return "reject_duration"
	case RejectBanned:
		return "reject_banned"
	case RejectDuplicateDownloaded:
		return "reject_duplicate_downloaded"
	case RejectInactive:
		return "reject_inactive"
	case RejectOffTopic:
		return "reject_off_topic"
	default:
		return "unknown"
	}
}

// Candidate is an upstream video considered for ingestion.
type Candidate struct {
	ExternalID   string
	URL          string
	Title        string
	Description  string
	Duration     int
	ThumbnailURL string
}

// Catalog is the slice of the item store the filter needs.
type Catalog interface {
	FindItemByExternalID(ctx context.Context, externalID string) (*storage.Item, error)
	CreateItem(ctx context.Context, q storage.Querier, item *storage.Item) error
	SetActive(ctx context.Context, id string, active bool) error
}

// TopicGate answers whether text matches any category.
type TopicGate interface {
	IsOnTopic(text string, taxonomy []storage.Category) bool
}

// Slots hands out publication slots for newly admitted items. The callback
// runs inside the slot lock, so the insert consuming the slot commits before
// another admitter can read the queue tail.
type Slots interface {
	WithNextSlot(ctx context.Context, fn func(ctx context.Context, q storage.Querier, slot time.Time) error) error
}

type Filter struct {
	catalog Catalog
	gate    TopicGate
	slots   Slots
	caser   cases.Caser
	logger  *zerolog.Logger
}

func New(catalog Catalog, gate TopicGate, slots Slots, logger *zerolog.Logger) *Filter {
	return &Filter{
		catalog: catalog,
		gate:    gate,
		slots:   slots,
		caser:   cases.Fold(),
		logger:  logger,
	}
}

// Admit runs the admission checks in order, short-circuiting on the first
// failure. On Accept the returned item exists in the catalog with a
// publication slot assigned; the caller proceeds to download it.
//
// A nil policy means ad-hoc ingestion: duration and banned-word checks are
// skipped and the item is admitted unconditionally once it is active.
func (f *Filter) Admit(ctx context.Context, cand Candidate, policy *storage.Channel, banned []storage.BannedWord, taxonomy []storage.Category) (Decision, *storage.Item, error) {
	existing, err := f.catalog.FindItemByExternalID(ctx, cand.ExternalID)
	if err != nil {
		return Accept, nil, err
	}

	if existing != nil && existing.IsDownloaded {
		return RejectDuplicateDownloaded, existing, nil
	}

	if policy != nil {
		if cand.Duration < policy.MinDuration || cand.Duration > policy.MaxDuration {
			return RejectDuration, existing, nil
		}

		if word := f.matchBanned(cand.Title, banned); word != "" {
			f.logger.Info().Str("title", cand.Title).Str("word", word).Msg("candidate title contains banned word")
			return RejectBanned, existing, nil
		}
	}

	item := existing
	if item == nil {
		item, err = f.createItem(ctx, cand, policy)
		if err != nil {
			return Accept, nil, err
		}
	}

	// The record persists for audit even when rejected from here on.
	if !item.IsActive {
		return RejectInactive, item, nil
	}

	if policy != nil && policy.OnlyRelated {
		if !f.gate.IsOnTopic(item.Name+" "+item.Description, taxonomy) {
			// Topic-restricted channels self-prune: the item is deactivated
			// so later passes skip it without re-classifying.
			if err := f.catalog.SetActive(ctx, item.ID, false); err != nil {
				return RejectOffTopic, item, err
			}

			item.IsActive = false

			return RejectOffTopic, item, nil
		}
	}

	return Accept, item, nil
}

func (f *Filter) matchBanned(title string, banned []storage.BannedWord) string {
	folded := f.caser.String(title)

	for _, word := range banned {
		if word.Name == "" {
			continue
		}

		if strings.Contains(folded, f.caser.String(word.Name)) {
			return word.Name
		}
	}

	return ""
}

func (f *Filter) createItem(ctx context.Context, cand Candidate, policy *storage.Channel) (*storage.Item, error) {
	item := &storage.Item{
		URL:             cand.URL,
		ExternalVideoID: cand.ExternalID,
		Name:            cand.Title,
		Description:     cand.Description,
		Duration:        cand.Duration,
		ThumbnailURL:    cand.ThumbnailURL,
		IsActive:        true,
	}

	if policy != nil {
		item.ChannelID = policy.ID
		item.DestinationID = policy.DestinationID
	}

	err := f.slots.WithNextSlot(ctx, func(ctx context.Context, q storage.Querier, slot time.Time) error {
		item.PublicationDate = slot

		return f.catalog.CreateItem(ctx, q, item)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}
