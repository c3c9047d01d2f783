package taxonomy

import (
	"testing"

	"github.com/ndemidov/tubecast/internal/storage"
)

func taxonomyFixture() []storage.Category {
	return []storage.Category{
		{
			ID:   "cat-music",
			Name: "music",
			Keywords: []storage.Keyword{
				{Name: "concert"},
				{Name: "live session"},
			},
		},
		{
			ID:   "cat-history",
			Name: "history",
			Keywords: []storage.Keyword{
				{Name: "ancient rome"},
			},
		},
		{
			ID:   "cat-chess",
			Name: "chess",
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "keyword match",
			text: "Live Concert Tonight",
			want: []string{"cat-music"},
		},
		{
			name: "category own name matches without keywords",
			text: "World Chess Championship recap",
			want: []string{"cat-chess"},
		},
		{
			name: "case insensitive keyword",
			text: "documentary about ANCIENT ROME and its emperors",
			want: []string{"cat-history"},
		},
		{
			name: "multiple categories",
			text: "Music from Ancient Rome: a concert reconstruction",
			want: []string{"cat-music", "cat-history"},
		},
		{
			name: "no match",
			text: "Cooking pasta at home",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	c := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, taxonomyFixture())

			if len(got) != len(tt.want) {
				t.Fatalf("Classify() returned %d categories, want %d", len(got), len(tt.want))
			}

			for i, cat := range got {
				if cat.ID != tt.want[i] {
					t.Errorf("Classify()[%d].ID = %q, want %q", i, cat.ID, tt.want[i])
				}
			}
		})
	}
}

func TestIsOnTopic(t *testing.T) {
	c := New()

	if !c.IsOnTopic("a small concert", taxonomyFixture()) {
		t.Error("IsOnTopic() = false, want true for keyword match")
	}

	if c.IsOnTopic("unrelated gardening video", taxonomyFixture()) {
		t.Error("IsOnTopic() = true, want false for off-topic text")
	}

	if c.IsOnTopic("anything at all", nil) {
		t.Error("IsOnTopic() = true, want false for empty taxonomy")
	}
}
