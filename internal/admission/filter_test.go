package admission

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ndemidov/tubecast/internal/storage"
)

type fakeCatalog struct {
	items map[string]*storage.Item
}

func newFakeCatalog(items ...*storage.Item) *fakeCatalog {
	c := &fakeCatalog{items: make(map[string]*storage.Item)}
	for _, it := range items {
		c.items[it.ExternalVideoID] = it
	}

	return c
}

func (c *fakeCatalog) FindItemByExternalID(_ context.Context, externalID string) (*storage.Item, error) {
	return c.items[externalID], nil
}

func (c *fakeCatalog) CreateItem(_ context.Context, _ storage.Querier, item *storage.Item) error {
	if existing, ok := c.items[item.ExternalVideoID]; ok {
		*item = *existing
		return nil
	}

	item.ID = "item-" + item.ExternalVideoID
	c.items[item.ExternalVideoID] = item

	return nil
}

func (c *fakeCatalog) SetActive(_ context.Context, id string, active bool) error {
	for _, it := range c.items {
		if it.ID == id {
			it.IsActive = active
		}
	}

	return nil
}

type fakeGate struct{ onTopic bool }

func (g fakeGate) IsOnTopic(string, []storage.Category) bool { return g.onTopic }

// fakeSlots only advances its tail when the callback commits, mirroring the
// real scheduler where the slot read and the consuming insert share one
// locked transaction.
type fakeSlots struct {
	at       time.Time
	interval time.Duration
}

func (s *fakeSlots) WithNextSlot(ctx context.Context, fn func(ctx context.Context, q storage.Querier, slot time.Time) error) error {
	if err := fn(ctx, nil, s.at); err != nil {
		return err
	}

	s.at = s.at.Add(s.interval)

	return nil
}

func testPolicy() *storage.Channel {
	return &storage.Channel{
		ID:          "chan-1",
		MinDuration: 60,
		MaxDuration: 3600,
	}
}

func newFilter(catalog Catalog, onTopic bool) *Filter {
	logger := zerolog.Nop()
	return New(catalog, fakeGate{onTopic: onTopic}, &fakeSlots{at: time.Now(), interval: 4 * time.Hour}, &logger)
}

func TestAdmitAssignsDistinctSlots(t *testing.T) {
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog()
	logger := zerolog.Nop()
	f := New(catalog, fakeGate{onTopic: true}, &fakeSlots{at: base, interval: 4 * time.Hour}, &logger)

	first, second := Candidate{ExternalID: "v1", Title: "First", Duration: 120},
		Candidate{ExternalID: "v2", Title: "Second", Duration: 120}

	_, itemA, err := f.Admit(context.Background(), first, testPolicy(), nil, nil)
	require.NoError(t, err)

	_, itemB, err := f.Admit(context.Background(), second, testPolicy(), nil, nil)
	require.NoError(t, err)

	require.Equal(t, base, itemA.PublicationDate)
	require.Equal(t, base.Add(4*time.Hour), itemB.PublicationDate)
	require.True(t, itemB.PublicationDate.After(itemA.PublicationDate))
}

func TestAdmitScenario(t *testing.T) {
	banned := []storage.BannedWord{{Name: "spam"}}

	tests := []struct {
		name string
		cand Candidate
		want Decision
	}{
		{
			name: "too short",
			cand: Candidate{ExternalID: "a", Title: "Short clip", Duration: 30},
			want: RejectDuration,
		},
		{
			name: "banned word beats duration acceptance",
			cand: Candidate{ExternalID: "b", Title: "Spam sale today", Duration: 120},
			want: RejectBanned,
		},
		{
			name: "normal video accepted",
			cand: Candidate{ExternalID: "c", Title: "Normal video", Duration: 120},
			want: Accept,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			f := newFilter(catalog, true)

			decision, item, err := f.Admit(context.Background(), tt.cand, testPolicy(), banned, nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, decision)

			if tt.want == Accept {
				require.NotNil(t, item)
				require.False(t, item.IsDownloaded)
				require.Equal(t, "chan-1", item.ChannelID)
			}
		})
	}
}

func TestAdmitDurationBoundsInclusive(t *testing.T) {
	tests := []struct {
		duration int
		want     Decision
	}{
		{duration: 59, want: RejectDuration},
		{duration: 60, want: Accept},
		{duration: 3600, want: Accept},
		{duration: 3601, want: RejectDuration},
	}

	for _, tt := range tests {
		catalog := newFakeCatalog()
		f := newFilter(catalog, true)

		decision, _, err := f.Admit(context.Background(),
			Candidate{ExternalID: "x", Title: "ok", Duration: tt.duration},
			testPolicy(), nil, nil)
		require.NoError(t, err)
		require.Equal(t, tt.want, decision, "duration %d", tt.duration)
	}
}

func TestAdmitBannedRegardlessOfDuration(t *testing.T) {
	banned := []storage.BannedWord{{Name: "Spam"}}
	catalog := newFakeCatalog()
	f := newFilter(catalog, true)

	decision, _, err := f.Admit(context.Background(),
		Candidate{ExternalID: "x", Title: "best SPAM recipes", Duration: 600},
		testPolicy(), banned, nil)
	require.NoError(t, err)
	require.Equal(t, RejectBanned, decision)
}

func TestAdmitDuplicateDownloadedShortCircuits(t *testing.T) {
	existing := &storage.Item{
		ID:              "item-x",
		ExternalVideoID: "x",
		IsActive:        true,
		IsDownloaded:    true,
	}
	f := newFilter(newFakeCatalog(existing), true)

	// Duration would be rejected, but the duplicate check runs first.
	decision, _, err := f.Admit(context.Background(),
		Candidate{ExternalID: "x", Title: "whatever", Duration: 1},
		testPolicy(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, RejectDuplicateDownloaded, decision)
}

func TestAdmitInactiveExistingItem(t *testing.T) {
	existing := &storage.Item{
		ID:              "item-x",
		ExternalVideoID: "x",
		IsActive:        false,
	}
	f := newFilter(newFakeCatalog(existing), true)

	decision, item, err := f.Admit(context.Background(),
		Candidate{ExternalID: "x", Title: "ok", Duration: 120},
		testPolicy(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, RejectInactive, decision)
	require.NotNil(t, item)
}

func TestAdmitOffTopicDeactivates(t *testing.T) {
	catalog := newFakeCatalog()
	f := newFilter(catalog, false)

	policy := testPolicy()
	policy.OnlyRelated = true

	decision, item, err := f.Admit(context.Background(),
		Candidate{ExternalID: "x", Title: "unrelated", Duration: 120},
		policy, nil, nil)
	require.NoError(t, err)
	require.Equal(t, RejectOffTopic, decision)
	require.False(t, item.IsActive)

	// The record persists for audit.
	stored, err := catalog.FindItemByExternalID(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.False(t, stored.IsActive)
}

func TestAdmitAdHocSkipsPolicyChecks(t *testing.T) {
	banned := []storage.BannedWord{{Name: "spam"}}
	f := newFilter(newFakeCatalog(), true)

	decision, item, err := f.Admit(context.Background(),
		Candidate{ExternalID: "x", Title: "spam but ad-hoc", Duration: 1},
		nil, banned, nil)
	require.NoError(t, err)
	require.Equal(t, Accept, decision)
	require.Empty(t, item.ChannelID)
}
