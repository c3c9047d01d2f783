package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ndemidov/tubecast/internal/cleanup"
	"github.com/ndemidov/tubecast/internal/storage"
)

// Defaults applied to channels created from the bot; operators tune them in
// the database afterwards.
const (
	defaultMinDuration = 60
	defaultMaxDuration = 3600
	defaultMaxVideos   = 20
)

func (b *Bot) handleListChannels(ctx context.Context, msg *tgbotapi.Message) {
	channels, err := b.database.ListChannels(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if len(channels) == 0 {
		b.reply(msg, "No channels configured.")
		return
	}

	var sb strings.Builder

	for _, ch := range channels {
		fmt.Fprintf(&sb, "%s\n  %s (duration %d-%ds, max %d, related=%t)\n",
			ch.Name, ch.URL, ch.MinDuration, ch.MaxDuration, ch.MaxVideos, ch.OnlyRelated)
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleAddChannel(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.reply(msg, "Usage: /addchannel <url> <name> [destination]")
		return
	}

	channel := &storage.Channel{
		URL:         args[0],
		Name:        args[1],
		MinDuration: defaultMinDuration,
		MaxDuration: defaultMaxDuration,
		MaxVideos:   defaultMaxVideos,
	}

	if len(args) > 2 {
		dest, err := b.findDestination(ctx, args[2])
		if err != nil {
			b.replyError(msg, err)
			return
		}

		channel.DestinationID = dest.ID
	}

	if err := b.database.CreateChannel(ctx, channel); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			b.reply(msg, "Channel with that URL already exists.")
			return
		}

		b.replyError(msg, err)

		return
	}

	b.reply(msg, fmt.Sprintf("Channel %q added.", channel.Name))
}

func (b *Bot) handleRemoveChannel(ctx context.Context, msg *tgbotapi.Message) {
	url := strings.TrimSpace(msg.CommandArguments())
	if url == "" {
		b.reply(msg, "Usage: /removechannel <url>")
		return
	}

	channels, err := b.database.ListChannels(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	for _, ch := range channels {
		if ch.URL == url {
			if err := b.database.DeleteChannel(ctx, ch.ID); err != nil {
				b.replyError(msg, err)
				return
			}

			b.reply(msg, fmt.Sprintf("Channel %q removed.", ch.Name))

			return
		}
	}

	b.reply(msg, "No channel with that URL.")
}

func (b *Bot) handleSetChannel(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 3 {
		b.reply(msg, "Usage: /setchannel <url> <field> <value>")
		return
	}

	channels, err := b.database.ListChannels(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	var channel *storage.Channel

	for i := range channels {
		if channels[i].URL == args[0] {
			channel = &channels[i]
			break
		}
	}

	if channel == nil {
		b.reply(msg, "No channel with that URL.")
		return
	}

	if err := setChannelField(channel, args[1], args[2]); err != nil {
		b.reply(msg, err.Error())
		return
	}

	if err := b.database.UpdateChannel(ctx, channel); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Channel %q updated: %s=%s.", channel.Name, args[1], args[2]))
}

func setChannelField(channel *storage.Channel, field, value string) error {
	switch field {
	case "min_duration", "max_duration", "max_videos":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative number", field)
		}

		switch field {
		case "min_duration":
			channel.MinDuration = n
		case "max_duration":
			channel.MaxDuration = n
		case "max_videos":
			channel.MaxVideos = n
		}
	case "only_related", "extract_tags":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", field)
		}

		if field == "only_related" {
			channel.OnlyRelated = v
		} else {
			channel.ExtractTags = v
		}
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	return nil
}

func (b *Bot) handleRemoveItem(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.reply(msg, "Usage: /remove <video_id>")
		return
	}

	item, err := b.database.FindItemByExternalID(ctx, arg)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if item == nil {
		b.reply(msg, fmt.Sprintf("No item with video id %q.", arg))
		return
	}

	// Files go first: once the row is gone nothing points at them anymore.
	if item.File != "" {
		if _, err := cleanup.RemoveFiles(item.File); err != nil {
			b.replyError(msg, err)
			return
		}
	}

	if err := b.database.DeleteItem(ctx, item.ID); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Removed %q.", item.Name))
}

func (b *Bot) handleListDestinations(ctx context.Context, msg *tgbotapi.Message) {
	destinations, err := b.database.ListDestinations(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if len(destinations) == 0 {
		b.reply(msg, "No destinations configured.")
		return
	}

	var sb strings.Builder

	for _, d := range destinations {
		fmt.Fprintf(&sb, "%s -> %d (auto_post=%t)\n", d.Name, d.ExternalID, d.AutoPost)
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleAddDestination(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.reply(msg, "Usage: /adddestination <chat_id> <name>")
		return
	}

	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(msg, "chat_id must be a number.")
		return
	}

	dest := &storage.Destination{Name: args[1], ExternalID: chatID, AutoPost: true}

	if err := b.database.CreateDestination(ctx, dest); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Destination %q added.", dest.Name))
}

func (b *Bot) handleRemoveDestination(ctx context.Context, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.reply(msg, "Usage: /removedestination <name>")
		return
	}

	dest, err := b.findDestination(ctx, name)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if err := b.database.DeleteDestination(ctx, dest.ID); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Destination %q removed.", dest.Name))
}

func (b *Bot) handleListCategories(ctx context.Context, msg *tgbotapi.Message) {
	taxonomy, err := b.database.GetTaxonomy(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if len(taxonomy) == 0 {
		b.reply(msg, "No categories configured.")
		return
	}

	var sb strings.Builder

	for _, c := range taxonomy {
		words := make([]string, len(c.Keywords))
		for i, k := range c.Keywords {
			words[i] = k.Name
		}

		fmt.Fprintf(&sb, "%s: %s\n", c.Name, strings.Join(words, ", "))
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleAddCategory(ctx context.Context, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.reply(msg, "Usage: /addcategory <name>")
		return
	}

	if _, err := b.database.CreateCategory(ctx, name); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Category %q added.", name))
}

func (b *Bot) handleRemoveCategory(ctx context.Context, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.reply(msg, "Usage: /removecategory <name>")
		return
	}

	category, err := b.findCategory(ctx, name)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if err := b.database.DeleteCategory(ctx, category.ID); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Category %q removed.", category.Name))
}

func (b *Bot) handleAddKeyword(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.reply(msg, "Usage: /addkeyword <category> <word>")
		return
	}

	category, err := b.findCategory(ctx, args[0])
	if err != nil {
		b.replyError(msg, err)
		return
	}

	word := strings.Join(args[1:], " ")

	if _, err := b.database.CreateKeyword(ctx, word, category.ID); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Keyword %q added to %q.", word, category.Name))
}

func (b *Bot) handleRemoveKeyword(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.reply(msg, "Usage: /removekeyword <category> <word>")
		return
	}

	category, err := b.findCategory(ctx, args[0])
	if err != nil {
		b.replyError(msg, err)
		return
	}

	word := strings.Join(args[1:], " ")

	for _, k := range category.Keywords {
		if strings.EqualFold(k.Name, word) {
			if err := b.database.DeleteKeyword(ctx, k.ID); err != nil {
				b.replyError(msg, err)
				return
			}

			b.reply(msg, fmt.Sprintf("Keyword %q removed from %q.", k.Name, category.Name))

			return
		}
	}

	b.reply(msg, fmt.Sprintf("No keyword %q in %q.", word, category.Name))
}

func (b *Bot) handleListBanned(ctx context.Context, msg *tgbotapi.Message) {
	words, err := b.database.ListBannedWords(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if len(words) == 0 {
		b.reply(msg, "No banned words.")
		return
	}

	names := make([]string, len(words))
	for i, w := range words {
		names[i] = w.Name
	}

	b.reply(msg, strings.Join(names, "\n"))
}

func (b *Bot) handleBan(ctx context.Context, msg *tgbotapi.Message) {
	word := strings.TrimSpace(msg.CommandArguments())
	if word == "" {
		b.reply(msg, "Usage: /ban <word>")
		return
	}

	if _, err := b.database.CreateBannedWord(ctx, word); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Banned %q.", word))
}

func (b *Bot) handleUnban(ctx context.Context, msg *tgbotapi.Message) {
	word := strings.TrimSpace(msg.CommandArguments())
	if word == "" {
		b.reply(msg, "Usage: /unban <word>")
		return
	}

	words, err := b.database.ListBannedWords(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	for _, w := range words {
		if strings.EqualFold(w.Name, word) {
			if err := b.database.DeleteBannedWord(ctx, w.ID); err != nil {
				b.replyError(msg, err)
				return
			}

			b.reply(msg, fmt.Sprintf("Unbanned %q.", w.Name))

			return
		}
	}

	b.reply(msg, fmt.Sprintf("%q is not banned.", word))
}

func (b *Bot) findCategory(ctx context.Context, name string) (*storage.Category, error) {
	taxonomy, err := b.database.GetTaxonomy(ctx)
	if err != nil {
		return nil, err
	}

	for i := range taxonomy {
		if strings.EqualFold(taxonomy[i].Name, name) {
			return &taxonomy[i], nil
		}
	}

	return nil, fmt.Errorf("unknown category %q", name)
}
