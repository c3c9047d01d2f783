package publish

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/storage"
)

const helpText = `Commands:
/status - queue and catalog counts
/post - post the next queued item now
/reshuffle - randomize the pending publication order
/rebase - reset all pending publication dates to now
/add <url> [destination] - ingest a single video
/recent [n] - recently scheduled items
/activate <video_id> - reactivate a failed item
/remove <video_id> - drop an item from the catalog
/channels, /addchannel <url> <name> [destination], /removechannel <url>
/setchannel <url> <field> <value> - tune min_duration, max_duration, max_videos, only_related, extract_tags
/destinations, /adddestination <chat_id> <name>, /removedestination <name>
/categories, /addcategory <name>, /removecategory <name>
/addkeyword <category> <word>, /removekeyword <category> <word>
/banned, /ban <word>, /unban <word>
/help - this message`

// Shuffler reorders the pending publication queue.
type Shuffler interface {
	ReshufflePending(ctx context.Context) (int, error)
	RebaseToNow(ctx context.Context) (int64, error)
}

// URLIngestor admits and downloads a single video.
type URLIngestor interface {
	IngestURL(ctx context.Context, videoURL, destinationID string) (*storage.Item, error)
}

// PostRunner runs one posting pass.
type PostRunner interface {
	Run(ctx context.Context) error
}

// Bot is the admin-gated operator interface.
type Bot struct {
	api      *tgbotapi.BotAPI
	database *storage.DB
	shuffler Shuffler
	ingestor URLIngestor
	poster   PostRunner
	adminIDs []int64
	logger   *zerolog.Logger
}

func NewBot(api *tgbotapi.BotAPI, database *storage.DB, shuffler Shuffler, ingestor URLIngestor, poster PostRunner, adminIDs []int64, logger *zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		database: database,
		shuffler: shuffler,
		ingestor: ingestor,
		poster:   poster,
		adminIDs: adminIDs,
		logger:   logger,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("bot", b.api.Self.UserName).Msg("operator bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			if !b.isAdmin(update.Message.From.ID) {
				b.logger.Warn().Int64("user_id", update.Message.From.ID).Str("username", update.Message.From.UserName).Msg("unauthorized access attempt")
				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}

	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	b.logger.Info().Str("command", msg.Command()).Int64("user_id", msg.From.ID).Msg("handling command")

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, helpText)
	case "status":
		b.handleStatus(ctx, msg)
	case "post":
		b.handlePost(ctx, msg)
	case "reshuffle":
		b.handleReshuffle(ctx, msg)
	case "rebase":
		b.handleRebase(ctx, msg)
	case "add":
		b.handleAdd(ctx, msg)
	case "recent":
		b.handleRecent(ctx, msg)
	case "activate":
		b.handleActivate(ctx, msg)
	case "channels":
		b.handleListChannels(ctx, msg)
	case "addchannel":
		b.handleAddChannel(ctx, msg)
	case "removechannel":
		b.handleRemoveChannel(ctx, msg)
	case "setchannel":
		b.handleSetChannel(ctx, msg)
	case "remove":
		b.handleRemoveItem(ctx, msg)
	case "destinations":
		b.handleListDestinations(ctx, msg)
	case "adddestination":
		b.handleAddDestination(ctx, msg)
	case "removedestination":
		b.handleRemoveDestination(ctx, msg)
	case "categories":
		b.handleListCategories(ctx, msg)
	case "addcategory":
		b.handleAddCategory(ctx, msg)
	case "removecategory":
		b.handleRemoveCategory(ctx, msg)
	case "addkeyword":
		b.handleAddKeyword(ctx, msg)
	case "removekeyword":
		b.handleRemoveKeyword(ctx, msg)
	case "banned":
		b.handleListBanned(ctx, msg)
	case "ban":
		b.handleBan(ctx, msg)
	case "unban":
		b.handleUnban(ctx, msg)
	default:
		b.reply(msg, "Unknown command. Use /help.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	total, err := b.database.CountItems(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	pending, err := b.database.CountPendingItems(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	channels, err := b.database.CountChannels(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	categories, err := b.database.CountCategories(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Items: %d\nPending: %d\nChannels: %d\nCategories: %d",
		total, pending, channels, categories))
}

// handlePost flags the next queued item as awaiting and runs one posting
// pass, so it goes out even when the destination has auto posting off.
func (b *Bot) handlePost(ctx context.Context, msg *tgbotapi.Message) {
	item, err := b.database.NextPostable(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if item == nil {
		b.reply(msg, "Nothing to post.")
		return
	}

	if err := b.database.SetAwaitingPost(ctx, item.ID, true); err != nil {
		b.replyError(msg, err)
		return
	}

	if err := b.poster.Run(ctx); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Posted %q.", item.Name))
}

func (b *Bot) handleReshuffle(ctx context.Context, msg *tgbotapi.Message) {
	n, err := b.shuffler.ReshufflePending(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Reshuffled %d pending items.", n))
}

func (b *Bot) handleRebase(ctx context.Context, msg *tgbotapi.Message) {
	n, err := b.shuffler.RebaseToNow(ctx)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Rebased %d pending items to now.", n))
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(msg, "Usage: /add <url> [destination]")
		return
	}

	var destinationID string

	if len(args) > 1 {
		dest, err := b.findDestination(ctx, args[1])
		if err != nil {
			b.replyError(msg, err)
			return
		}

		destinationID = dest.ID
	}

	item, err := b.ingestor.IngestURL(ctx, args[0], destinationID)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Added %q, scheduled for %s.", item.Name, item.PublicationDate.Format("2006-01-02 15:04")))
}

func (b *Bot) handleRecent(ctx context.Context, msg *tgbotapi.Message) {
	limit := 10
	if args := strings.Fields(msg.CommandArguments()); len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &limit)
	}

	items, err := b.database.ListRecentItems(ctx, limit)
	if err != nil {
		b.replyError(msg, err)
		return
	}

	if len(items) == 0 {
		b.reply(msg, "No items yet.")
		return
	}

	var sb strings.Builder

	for _, it := range items {
		fmt.Fprintf(&sb, "%s %s (posted=%t active=%t)\n",
			it.PublicationDate.Format("2006-01-02 15:04"), it.Name, it.IsPosted, it.IsActive)
	}

	b.reply(msg, sb.String())
}

// handleActivate clears the permanent deactivation of an item that exhausted
// its post attempts, putting it back in the queue.
func (b *Bot) handleActivate(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.reply(msg, "Usage: /activate <video_id>")
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

	if err := b.database.SetActive(ctx, item.ID, true); err != nil {
		b.replyError(msg, err)
		return
	}

	b.reply(msg, fmt.Sprintf("Reactivated %q.", item.Name))
}

func (b *Bot) findDestination(ctx context.Context, name string) (*storage.Destination, error) {
	destinations, err := b.database.ListDestinations(ctx)
	if err != nil {
		return nil, err
	}

	for i := range destinations {
		if strings.EqualFold(destinations[i].Name, name) {
			return &destinations[i], nil
		}
	}

	return nil, fmt.Errorf("unknown destination %q", name)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error().Err(err).Msg("failed to send reply")
	}
}

func (b *Bot) replyError(msg *tgbotapi.Message, err error) {
	b.logger.Error().Err(err).Str("command", msg.Command()).Msg("command failed")
	b.reply(msg, fmt.Sprintf("Error: %v", err))
}
