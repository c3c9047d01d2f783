// Package taxonomy implements topic classification against an
// operator-maintained keyword taxonomy.
//
// A category matches an item when the category's own name, or any of its
// keywords, appears as a case-insensitive substring of the item's name and
// description. Matching is pure: attachment and link deduplication are the
// catalog's responsibility.
package taxonomy

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ndemidov/tubecast/internal/storage"
)

// Classifier matches item text against the category taxonomy.
type Classifier struct {
	caser cases.Caser
}

func New() *Classifier {
	return &Classifier{caser: cases.Fold()}
}

// Classify returns the categories whose name or keywords occur in text.
func (c *Classifier) Classify(text string, taxonomy []storage.Category) []storage.Category {
	folded := c.caser.String(text)

	var matched []storage.Category

	for _, category := range taxonomy {
		if c.matches(folded, category) {
			matched = append(matched, category)
		}
	}

	return matched
}

// IsOnTopic reports whether at least one category matches text. Used to gate
// admission for topic-restricted channels.
func (c *Classifier) IsOnTopic(text string, taxonomy []storage.Category) bool {
	folded := c.caser.String(text)

	for _, category := range taxonomy {
		if c.matches(folded, category) {
			return true
		}
	}

	return false
}

func (c *Classifier) matches(foldedText string, category storage.Category) bool {
	if category.Name != "" && strings.Contains(foldedText, c.caser.String(category.Name)) {
		return true
	}

	for _, kw := range category.Keywords {
		if kw.Name != "" && strings.Contains(foldedText, c.caser.String(kw.Name)) {
			return true
		}
	}

	return false
}
