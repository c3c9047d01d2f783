package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository methods
// can run standalone or inside the scheduler's locked transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Item is one ingested piece of content tracked through download, processing
// and publication.
type Item struct {
	ID              string
	URL             string
	ExternalVideoID string
	Name            string
	Description     string
	ChannelID       string
	DestinationID   string
	PublicationDate time.Time
	IsActive        bool
	IsPosted        bool
	IsAwaitingPost  bool
	IsProcessed     bool
	IsDownloaded    bool
	File            string
	Filesize        int64
	Bitrate         string
	ThumbnailURL    string
	Thumbnail       string
	Duration        int
	FailedTimes     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const itemColumns = `id, url, external_video_id, name, description, channel_id, destination_channel_id,
	publication_date, is_active, is_posted, is_awaiting_post, is_processed, is_downloaded,
	file, filesize, bitrate, thumbnail_url, thumbnail, duration, failed_times, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var (
		it            Item
		id            pgtype.UUID
		channelID     pgtype.UUID
		destinationID pgtype.UUID
		description   pgtype.Text
		file          pgtype.Text
		bitrate       pgtype.Text
		thumbnailURL  pgtype.Text
		thumbnail     pgtype.Text
		duration      pgtype.Int4
	)

	if err := row.Scan(&id, &it.URL, &it.ExternalVideoID, &it.Name, &description,
		&channelID, &destinationID, &it.PublicationDate, &it.IsActive, &it.IsPosted,
		&it.IsAwaitingPost, &it.IsProcessed, &it.IsDownloaded, &file, &it.Filesize,
		&bitrate, &thumbnailURL, &thumbnail, &duration, &it.FailedTimes,
		&it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}

	it.ID = fromUUID(id)
	it.ChannelID = fromUUID(channelID)
	it.DestinationID = fromUUID(destinationID)
	it.Description = description.String
	it.File = file.String
	it.Bitrate = bitrate.String
	it.ThumbnailURL = thumbnailURL.String
	it.Thumbnail = thumbnail.String
	it.Duration = int(duration.Int32)

	return &it, nil
}

// CreateItem inserts a new item. Re-ingesting a known external video id is a
// no-op: the existing row is loaded into item instead of creating a duplicate.
// The insert runs on q so callers can bind it to the scheduler's locked
// transaction together with the slot read that produced publication_date.
func (db *DB) CreateItem(ctx context.Context, q Querier, item *Item) error {
	var id pgtype.UUID

	err := q.QueryRow(ctx,
		`INSERT INTO item (url, external_video_id, name, description, channel_id,
			destination_channel_id, publication_date, duration, thumbnail_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		toRequiredText(item.URL), item.ExternalVideoID, toRequiredText(item.Name), toText(item.Description),
		toUUID(item.ChannelID), toUUID(item.DestinationID), item.PublicationDate,
		item.Duration, toText(item.ThumbnailURL),
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, lookupErr := db.FindItemByExternalID(ctx, item.ExternalVideoID)
		if lookupErr != nil {
			return lookupErr
		}

		if existing == nil {
			return ErrDuplicate
		}

		*item = *existing

		return nil
	}

	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	item.ID = fromUUID(id)
	item.IsActive = true

	return nil
}

// FindItemByExternalID returns nil without error when no item matches.
func (db *DB) FindItemByExternalID(ctx context.Context, externalID string) (*Item, error) {
	it, err := scanItem(db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM item WHERE external_video_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("find item by external id: %w", err)
	}

	return it, nil
}

// MarkDownloaded records the downloaded file metadata. It is only called after
// the download fully completed, so a half-written file is never recorded.
func (db *DB) MarkDownloaded(ctx context.Context, id, file string, filesize int64, thumbnail string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET file = $2, filesize = $3, thumbnail = $4, is_downloaded = TRUE, updated_at = now()
		 WHERE id = $1`,
		toUUID(id), toText(file), filesize, toText(thumbnail),
	); err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}

	return nil
}

func (db *DB) UpdateCompression(ctx context.Context, id, file string, filesize int64, bitrate string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET file = $2, filesize = $3, bitrate = $4, updated_at = now() WHERE id = $1`,
		toUUID(id), toText(file), filesize, toText(bitrate),
	); err != nil {
		return fmt.Errorf("update compression: %w", err)
	}

	return nil
}

func (db *DB) MarkProcessed(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET is_processed = TRUE, updated_at = now() WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	return nil
}

// MarkPosted finalizes a successful publish: the publication date is refreshed
// to the actual post time.
func (db *DB) MarkPosted(ctx context.Context, id string, postedAt time.Time) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET is_posted = TRUE, is_awaiting_post = FALSE, publication_date = $2, updated_at = now()
		 WHERE id = $1`,
		toUUID(id), postedAt,
	); err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}

	return nil
}

func (db *DB) SetAwaitingPost(ctx context.Context, id string, awaiting bool) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET is_awaiting_post = $2, updated_at = now() WHERE id = $1`,
		toUUID(id), awaiting,
	); err != nil {
		return fmt.Errorf("set awaiting post: %w", err)
	}

	return nil
}

// RecordPostFailure increments the failure counter and deactivates the item
// once it has failed more than maxFailures times in total.
func (db *DB) RecordPostFailure(ctx context.Context, id string, maxFailures int) (int, bool, error) {
	var (
		failedTimes int
		isActive    bool
	)

	if err := db.Pool.QueryRow(ctx,
		`UPDATE item
		 SET failed_times = failed_times + 1,
		     is_active = is_active AND (failed_times + 1) <= $2,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING failed_times, is_active`,
		toUUID(id), maxFailures,
	).Scan(&failedTimes, &isActive); err != nil {
		return 0, false, fmt.Errorf("record post failure: %w", err)
	}

	return failedTimes, !isActive, nil
}

func (db *DB) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET is_active = $2, updated_at = now() WHERE id = $1`,
		toUUID(id), active,
	); err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return nil
}

// SetItemDestination points an item at a destination channel, used when a
// single URL is ingested outside any channel policy.
func (db *DB) SetItemDestination(ctx context.Context, id, destinationID string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET destination_channel_id = $2, updated_at = now() WHERE id = $1`,
		toUUID(id), toUUID(destinationID),
	); err != nil {
		return fmt.Errorf("set item destination: %w", err)
	}

	return nil
}

// ResetDownloaded clears the downloaded flag after a cleanup pass removed the
// files; the rest of the download state is left untouched.
func (db *DB) ResetDownloaded(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE item SET is_downloaded = FALSE, updated_at = now() WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("reset downloaded: %w", err)
	}

	return nil
}

func (db *DB) DeleteItem(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM item WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return nil
}

func (db *DB) listItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, *it)
	}

	return items, rows.Err()
}

// ListProcessable returns downloaded items waiting for the processing pass.
func (db *DB) ListProcessable(ctx context.Context) ([]Item, error) {
	items, err := db.listItems(ctx,
		`SELECT `+itemColumns+` FROM item
		 WHERE is_active AND NOT is_posted AND NOT is_processed AND is_downloaded
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list processable: %w", err)
	}

	return items, nil
}

// NextPostable returns the head of the publish queue, or nil when it is empty.
// Ties on publication_date are broken by creation order.
func (db *DB) NextPostable(ctx context.Context) (*Item, error) {
	it, err := scanItem(db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM item
		 WHERE is_active AND NOT is_posted AND is_processed AND is_downloaded
		 ORDER BY publication_date, created_at
		 LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("next postable: %w", err)
	}

	return it, nil
}

// ListCleanupCandidates returns inactive items that still hold files on disk.
func (db *DB) ListCleanupCandidates(ctx context.Context) ([]Item, error) {
	items, err := db.listItems(ctx,
		`SELECT `+itemColumns+` FROM item WHERE NOT is_active AND is_downloaded`)
	if err != nil {
		return nil, fmt.Errorf("list cleanup candidates: %w", err)
	}

	return items, nil
}

func (db *DB) ListRecentItems(ctx context.Context, limit int) ([]Item, error) {
	items, err := db.listItems(ctx,
		`SELECT `+itemColumns+` FROM item ORDER BY publication_date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent items: %w", err)
	}

	return items, nil
}

func (db *DB) CountItems(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM item`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}

	return n, nil
}

func (db *DB) CountPendingItems(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM item WHERE is_active AND NOT is_posted`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending items: %w", err)
	}

	return n, nil
}

// AttachCategories links an item to categories as a set union: existing links
// are left alone, so re-classification never duplicates a link.
func (db *DB) AttachCategories(ctx context.Context, itemID string, categoryIDs []string) error {
	for _, categoryID := range categoryIDs {
		if _, err := db.Pool.Exec(ctx,
			`INSERT INTO item_category (item_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			toUUID(itemID), toUUID(categoryID),
		); err != nil {
			return fmt.Errorf("attach category: %w", err)
		}
	}

	return nil
}

func (db *DB) ListItemCategories(ctx context.Context, itemID string) ([]Category, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT c.id, c.name FROM category c
		 JOIN item_category ic ON ic.category_id = c.id
		 WHERE ic.item_id = $1
		 ORDER BY c.name`,
		toUUID(itemID))
	if err != nil {
		return nil, fmt.Errorf("list item categories: %w", err)
	}
	defer rows.Close()

	var categories []Category

	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan item category: %w", err)
		}

		categories = append(categories, Category{ID: fromUUID(id), Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item categories: %w", err)
	}

	return categories, nil
}

// Scheduler queries. These take a Querier so the scheduler can run them inside
// its locked transaction.

// LatestScheduledAt returns the tail of the publish queue. The second return
// is false when no active, unposted item exists.
func (db *DB) LatestScheduledAt(ctx context.Context, q Querier) (time.Time, bool, error) {
	var latest time.Time

	err := q.QueryRow(ctx,
		`SELECT publication_date FROM item
		 WHERE is_active AND NOT is_posted
		 ORDER BY publication_date DESC
		 LIMIT 1`).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}

	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest scheduled at: %w", err)
	}

	return latest, true, nil
}

func (db *DB) SetPublicationDate(ctx context.Context, q Querier, id string, t time.Time) error {
	if _, err := q.Exec(ctx,
		`UPDATE item SET publication_date = $2, updated_at = now() WHERE id = $1`,
		toUUID(id), t,
	); err != nil {
		return fmt.Errorf("set publication date: %w", err)
	}

	return nil
}

// RebasePending sets every active, unposted item's publication date to t.
func (db *DB) RebasePending(ctx context.Context, q Querier, t time.Time) (int64, error) {
	tag, err := q.Exec(ctx,
		`UPDATE item SET publication_date = $1, updated_at = now()
		 WHERE is_active AND NOT is_posted`, t)
	if err != nil {
		return 0, fmt.Errorf("rebase pending: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListPendingDownloadedIDs returns active, unposted, downloaded item ids in
// random order; the caller turns this order into the new publish order.
func (db *DB) ListPendingDownloadedIDs(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT id FROM item
		 WHERE is_active AND NOT is_posted AND is_downloaded
		 ORDER BY random()`)
	if err != nil {
		return nil, fmt.Errorf("list pending downloaded: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}

		ids = append(ids, fromUUID(id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}

	return ids, nil
}
