package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

type BannedWord struct {
	ID   string
	Name string
}

func (db *DB) ListBannedWords(ctx context.Context) ([]BannedWord, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name FROM banned_word`)
	if err != nil {
		return nil, fmt.Errorf("list banned words: %w", err)
	}
	defer rows.Close()

	var words []BannedWord

	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan banned word: %w", err)
		}

		words = append(words, BannedWord{ID: fromUUID(id), Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banned words: %w", err)
	}

	return words, nil
}

func (db *DB) CreateBannedWord(ctx context.Context, name string) (string, error) {
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx,
		`INSERT INTO banned_word (name) VALUES ($1) RETURNING id`, toRequiredText(name),
	).Scan(&id); err != nil {
		return "", fmt.Errorf("create banned word: %w", err)
	}

	return fromUUID(id), nil
}

func (db *DB) DeleteBannedWord(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM banned_word WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete banned word: %w", err)
	}

	return nil
}
