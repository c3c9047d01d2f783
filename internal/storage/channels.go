package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Channel is an upstream content feed with its admission policy.
type Channel struct {
	ID            string
	URL           string
	Name          string
	MinDuration   int
	MaxDuration   int
	OnlyRelated   bool
	MaxVideos     int
	ExtractTags   bool
	DestinationID string
}

const channelColumns = `id, url, name, min_duration, max_duration, only_related, max_videos, extract_tags, destination_channel_id`

func scanChannel(row pgx.Row) (Channel, error) {
	var (
		c             Channel
		id            pgtype.UUID
		destinationID pgtype.UUID
	)

	if err := row.Scan(&id, &c.URL, &c.Name, &c.MinDuration, &c.MaxDuration,
		&c.OnlyRelated, &c.MaxVideos, &c.ExtractTags, &destinationID); err != nil {
		return Channel{}, err
	}

	c.ID = fromUUID(id)
	c.DestinationID = fromUUID(destinationID)

	return c, nil
}

func (db *DB) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+channelColumns+` FROM channel ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel

	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}

		channels = append(channels, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}

func (db *DB) GetChannel(ctx context.Context, id string) (*Channel, error) {
	c, err := scanChannel(db.Pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channel WHERE id = $1`, toUUID(id)))
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}

	return &c, nil
}

func (db *DB) CreateChannel(ctx context.Context, c *Channel) error {
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx,
		`INSERT INTO channel (url, name, min_duration, max_duration, only_related, max_videos, extract_tags, destination_channel_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`,
		toRequiredText(c.URL), toRequiredText(c.Name), c.MinDuration, c.MaxDuration,
		c.OnlyRelated, c.MaxVideos, c.ExtractTags, toUUID(c.DestinationID),
	).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return ErrDuplicate
		}

		return fmt.Errorf("create channel: %w", err)
	}

	c.ID = fromUUID(id)

	return nil
}

func (db *DB) UpdateChannel(ctx context.Context, c *Channel) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE channel SET url = $2, name = $3, min_duration = $4, max_duration = $5,
		 only_related = $6, max_videos = $7, extract_tags = $8, destination_channel_id = $9
		 WHERE id = $1`,
		toUUID(c.ID), toRequiredText(c.URL), toRequiredText(c.Name), c.MinDuration, c.MaxDuration,
		c.OnlyRelated, c.MaxVideos, c.ExtractTags, toUUID(c.DestinationID),
	); err != nil {
		return fmt.Errorf("update channel: %w", err)
	}

	return nil
}

func (db *DB) DeleteChannel(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM channel WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	return nil
}

func (db *DB) CountChannels(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM channel`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}

	return n, nil
}
