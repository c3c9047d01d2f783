// Package publish posts processed items to their Telegram destination
// channel and runs the operator bot.
package publish

import (
	"regexp"
	"strings"

	"github.com/ndemidov/tubecast/internal/storage"
)

// maxHashtags caps caption tags so the caption stays readable.
const maxHashtags = 8

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Caption builds the post caption. The layout is the item name and URL, a
// blank line, the channel hashtag, then up to eight deduplicated lowercase
// hashtags from the item's categories and, when the channel opts in, from
// hashtags found in the free-text description.
func Caption(item *storage.Item, channel *storage.Channel, categories []storage.Category) string {
	var sb strings.Builder

	sb.WriteString(item.Name)
	sb.WriteString("\n")
	sb.WriteString(item.URL)
	sb.WriteString("\n")

	if channel != nil {
		sb.WriteString("\n")
		sb.WriteString(ChannelHashtag(channel.Name))
		sb.WriteString(" ")
	}

	tags := make([]string, 0, len(categories))
	for _, c := range categories {
		tags = append(tags, strings.ReplaceAll(c.Name, " ", ""))
	}

	// Ad-hoc items have no channel policy and get description tags anyway.
	if channel == nil || channel.ExtractTags {
		tags = append(tags, extractHashtags(item.Description)...)
	}

	for _, tag := range dedupeTags(tags) {
		sb.WriteString("#")
		sb.WriteString(tag)
		sb.WriteString(" ")
	}

	return strings.TrimRight(sb.String(), " ")
}

// ChannelHashtag derives the channel's own hashtag from its display name.
func ChannelHashtag(name string) string {
	cleaned := strings.NewReplacer(" ", "", "'", "").Replace(name)
	return "#" + strings.ToLower(cleaned)
}

func extractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)

	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}

	return tags
}

// dedupeTags lowercases, trims and deduplicates tags preserving first-seen
// order, capped at maxHashtags.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}

		out = append(out, tag)
		if len(out) == maxHashtags {
			break
		}
	}

	return out
}
