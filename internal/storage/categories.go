package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

type Category struct {
	ID       string
	Name     string
	Keywords []Keyword
}

type Keyword struct {
	ID         string
	Name       string
	CategoryID string
}

// GetTaxonomy returns all categories with their keywords attached. This is the
// snapshot the classifier works against.
func (db *DB) GetTaxonomy(ctx context.Context) ([]Category, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name FROM category ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category

	index := make(map[string]int)

	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}

		index[fromUUID(id)] = len(categories)
		categories = append(categories, Category{ID: fromUUID(id), Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	kwRows, err := db.Pool.Query(ctx, `SELECT id, name, category_id FROM category_keyword`)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer kwRows.Close()

	for kwRows.Next() {
		var (
			id         pgtype.UUID
			name       string
			categoryID pgtype.UUID
		)

		if err := kwRows.Scan(&id, &name, &categoryID); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}

		i, ok := index[fromUUID(categoryID)]
		if !ok {
			continue
		}

		categories[i].Keywords = append(categories[i].Keywords, Keyword{
			ID:         fromUUID(id),
			Name:       name,
			CategoryID: fromUUID(categoryID),
		})
	}

	if err := kwRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}

	return categories, nil
}

func (db *DB) CreateCategory(ctx context.Context, name string) (string, error) {
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx,
		`INSERT INTO category (name) VALUES ($1) RETURNING id`, toRequiredText(name),
	).Scan(&id); err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}

	return fromUUID(id), nil
}

// DeleteCategory removes a category; its keywords and item links cascade.
func (db *DB) DeleteCategory(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM category WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return nil
}

func (db *DB) CreateKeyword(ctx context.Context, name, categoryID string) (string, error) {
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx,
		`INSERT INTO category_keyword (name, category_id) VALUES ($1, $2) RETURNING id`,
		toRequiredText(name), toUUID(categoryID),
	).Scan(&id); err != nil {
		return "", fmt.Errorf("create keyword: %w", err)
	}

	return fromUUID(id), nil
}

func (db *DB) DeleteKeyword(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM category_keyword WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}

	return nil
}

func (db *DB) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM category`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}

	return n, nil
}
