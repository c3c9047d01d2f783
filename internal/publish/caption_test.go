package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndemidov/tubecast/internal/storage"
)

func TestCaptionLayout(t *testing.T) {
	item := &storage.Item{
		Name: "Morning Talk",
		URL:  "https://www.youtube.com/watch?v=abc123",
	}
	channel := &storage.Channel{Name: "Dave's News Show"}
	categories := []storage.Category{{Name: "News"}, {Name: "Talk Radio"}}

	got := Caption(item, channel, categories)

	want := "Morning Talk\nhttps://www.youtube.com/watch?v=abc123\n\n#davesnewsshow #news #talkradio"
	require.Equal(t, want, got)
}

func TestCaptionWithoutChannel(t *testing.T) {
	item := &storage.Item{
		Name:        "One Off",
		URL:         "https://example.com/v",
		Description: "great stuff #GoLang and #golang again",
	}

	got := Caption(item, nil, nil)

	// No channel policy: no channel hashtag, description tags still mined
	// and deduplicated case-insensitively.
	require.Equal(t, "One Off\nhttps://example.com/v\n#golang", got)
}

func TestCaptionDescriptionTagsGated(t *testing.T) {
	item := &storage.Item{
		Name:        "Episode 4",
		URL:         "u",
		Description: "#bonus #extra",
	}

	withTags := Caption(item, &storage.Channel{Name: "Pod", ExtractTags: true}, nil)
	require.Contains(t, withTags, "#bonus")
	require.Contains(t, withTags, "#extra")

	withoutTags := Caption(item, &storage.Channel{Name: "Pod", ExtractTags: false}, nil)
	require.NotContains(t, withoutTags, "#bonus")
}

func TestCaptionCapsHashtags(t *testing.T) {
	categories := make([]storage.Category, 12)
	for i := range categories {
		categories[i] = storage.Category{Name: string(rune('a' + i))}
	}

	got := Caption(&storage.Item{Name: "n", URL: "u"}, &storage.Channel{Name: "ch"}, categories)

	// Channel hashtag plus the cap.
	require.Equal(t, 1+maxHashtags, strings.Count(got, "#"))
}

func TestCaptionDeduplicatesAcrossSources(t *testing.T) {
	item := &storage.Item{
		Name:        "n",
		URL:         "u",
		Description: "#music is life",
	}
	channel := &storage.Channel{Name: "ch", ExtractTags: true}

	got := Caption(item, channel, []storage.Category{{Name: "Music"}})

	require.Equal(t, 1, strings.Count(got, "#music"))
}

func TestChannelHashtag(t *testing.T) {
	require.Equal(t, "#davesnewsshow", ChannelHashtag("Dave's News Show"))
	require.Equal(t, "#plain", ChannelHashtag("plain"))
}
