package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ndemidov/tubecast/internal/storage"
)

type posterCatalog struct {
	queue        []*storage.Item
	channels     map[string]*storage.Channel
	destinations map[string]*storage.Destination
	categories   map[string][]storage.Category
	maxFailures  int

	posted []string
}

func (c *posterCatalog) NextPostable(context.Context) (*storage.Item, error) {
	for _, it := range c.queue {
		if it.IsActive && !it.IsPosted && it.IsProcessed && it.IsDownloaded {
			return it, nil
		}
	}

	return nil, nil
}

func (c *posterCatalog) GetChannel(_ context.Context, id string) (*storage.Channel, error) {
	ch, ok := c.channels[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return ch, nil
}

func (c *posterCatalog) GetDestination(_ context.Context, id string) (*storage.Destination, error) {
	d, ok := c.destinations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return d, nil
}

func (c *posterCatalog) ListItemCategories(_ context.Context, itemID string) ([]storage.Category, error) {
	return c.categories[itemID], nil
}

func (c *posterCatalog) MarkPosted(_ context.Context, id string, postedAt time.Time) error {
	for _, it := range c.queue {
		if it.ID == id {
			it.IsPosted = true
			it.IsAwaitingPost = false
			it.PublicationDate = postedAt
		}
	}

	c.posted = append(c.posted, id)

	return nil
}

func (c *posterCatalog) RecordPostFailure(_ context.Context, id string, maxFailures int) (int, bool, error) {
	for _, it := range c.queue {
		if it.ID == id {
			it.FailedTimes++
			if it.FailedTimes > maxFailures {
				it.IsActive = false
			}

			return it.FailedTimes, !it.IsActive, nil
		}
	}

	return 0, false, storage.ErrNotFound
}

func (c *posterCatalog) CountPendingItems(context.Context) (int64, error) {
	var n int64

	for _, it := range c.queue {
		if it.IsActive && !it.IsPosted {
			n++
		}
	}

	return n, nil
}

type fakeSender struct {
	err  error
	sent []Audio
}

func (s *fakeSender) SendAudio(_ context.Context, audio Audio) error {
	if s.err != nil {
		return s.err
	}

	s.sent = append(s.sent, audio)

	return nil
}

func readyItem(id string) *storage.Item {
	return &storage.Item{
		ID:            id,
		Name:          "Episode " + id,
		URL:           "https://example.com/" + id,
		DestinationID: "dest",
		File:          "/m/" + id + ".mp3",
		Thumbnail:     "/m/" + id + "-thumb.jpg",
		IsActive:      true,
		IsProcessed:   true,
		IsDownloaded:  true,
	}
}

func newPosterCatalog(items ...*storage.Item) *posterCatalog {
	return &posterCatalog{
		queue:        items,
		channels:     map[string]*storage.Channel{"chan": {ID: "chan", Name: "My Show"}},
		destinations: map[string]*storage.Destination{"dest": {ID: "dest", Name: "feed", ExternalID: -100123, AutoPost: true}},
		categories:   map[string][]storage.Category{},
	}
}

func newTestPoster(catalog Catalog, sender AudioSender) *Poster {
	logger := zerolog.Nop()
	return NewPoster(catalog, sender, 3, &logger)
}

func TestRunPostsNextItem(t *testing.T) {
	item := readyItem("a")
	item.ChannelID = "chan"
	catalog := newPosterCatalog(item)
	catalog.categories["a"] = []storage.Category{{Name: "News"}}
	sender := &fakeSender{}

	require.NoError(t, newTestPoster(catalog, sender).Run(context.Background()))

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(-100123), sender.sent[0].ChatID)
	require.Equal(t, "/m/a.mp3", sender.sent[0].FilePath)
	require.Equal(t, "Episode a", sender.sent[0].Title)
	require.Contains(t, sender.sent[0].Caption, "#myshow")
	require.Contains(t, sender.sent[0].Caption, "#news")
	require.Equal(t, []string{"a"}, catalog.posted)
	require.True(t, item.IsPosted)
}

func TestRunEmptyQueueIsNoop(t *testing.T) {
	catalog := newPosterCatalog()
	sender := &fakeSender{}

	require.NoError(t, newTestPoster(catalog, sender).Run(context.Background()))
	require.Empty(t, sender.sent)
}

func TestRunAutoPostGateHoldsQueue(t *testing.T) {
	item := readyItem("a")
	catalog := newPosterCatalog(item)
	catalog.destinations["dest"].AutoPost = false
	sender := &fakeSender{}

	require.NoError(t, newTestPoster(catalog, sender).Run(context.Background()))
	require.Empty(t, sender.sent)
	require.False(t, item.IsPosted)

	// An operator-requested post overrides the gate.
	item.IsAwaitingPost = true

	require.NoError(t, newTestPoster(catalog, sender).Run(context.Background()))
	require.Len(t, sender.sent, 1)
	require.False(t, item.IsAwaitingPost)
}

func TestRunFailureAccounting(t *testing.T) {
	item := readyItem("a")
	catalog := newPosterCatalog(item)
	sender := &fakeSender{err: errors.New("send timeout")}
	poster := newTestPoster(catalog, sender)

	for i := 1; i <= 3; i++ {
		require.NoError(t, poster.Run(context.Background()))
		require.Equal(t, i, item.FailedTimes)
		require.True(t, item.IsActive)
	}

	// The fourth failure deactivates the item.
	require.NoError(t, poster.Run(context.Background()))
	require.Equal(t, 4, item.FailedTimes)
	require.False(t, item.IsActive)

	// Inactive items leave the queue.
	require.NoError(t, poster.Run(context.Background()))
	require.Equal(t, 4, item.FailedTimes)
}

func TestRunSendFailureDoesNotMarkPosted(t *testing.T) {
	item := readyItem("a")
	catalog := newPosterCatalog(item)
	sender := &fakeSender{err: errors.New("boom")}

	require.NoError(t, newTestPoster(catalog, sender).Run(context.Background()))
	require.Empty(t, catalog.posted)
	require.False(t, item.IsPosted)
	require.Equal(t, 1, item.FailedTimes)
}
