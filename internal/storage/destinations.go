package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Destination is a publish target (a Telegram channel).
type Destination struct {
	ID         string
	Name       string
	ExternalID int64
	AutoPost   bool
}

func (db *DB) ListDestinations(ctx context.Context) ([]Destination, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, external_id, auto_post FROM destination_channel ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var destinations []Destination

	for rows.Next() {
		var (
			d  Destination
			id pgtype.UUID
		)

		if err := rows.Scan(&id, &d.Name, &d.ExternalID, &d.AutoPost); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}

		d.ID = fromUUID(id)
		destinations = append(destinations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destinations: %w", err)
	}

	return destinations, nil
}

func (db *DB) GetDestination(ctx context.Context, id string) (*Destination, error) {
	var (
		d   Destination
		uid pgtype.UUID
	)

	if err := db.Pool.QueryRow(ctx,
		`SELECT id, name, external_id, auto_post FROM destination_channel WHERE id = $1`,
		toUUID(id),
	).Scan(&uid, &d.Name, &d.ExternalID, &d.AutoPost); err != nil {
		return nil, fmt.Errorf("get destination: %w", err)
	}

	d.ID = fromUUID(uid)

	return &d, nil
}

func (db *DB) CreateDestination(ctx context.Context, d *Destination) error {
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx,
		`INSERT INTO destination_channel (name, external_id, auto_post) VALUES ($1, $2, $3) RETURNING id`,
		toRequiredText(d.Name), d.ExternalID, d.AutoPost,
	).Scan(&id); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	d.ID = fromUUID(id)

	return nil
}

func (db *DB) DeleteDestination(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM destination_channel WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}

	return nil
}
