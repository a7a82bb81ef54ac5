package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/model"
	"github.com/sakif/js-playground/internal/repository"
)

var _ repository.ChecklistRepository = (*DB)(nil)

// Get retrieves a single checklist item by key.
func (db *DB) Get(ctx context.Context, key string) (*model.ChecklistItem, error) {
	var item model.ChecklistItem

	err := db.conn.QueryRowContext(ctx,
		`SELECT key, checked, updated_at
		 FROM checklist_items
		 WHERE key = ?`,
		key,
	).Scan(&item.Key, &item.Checked, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("checklist item", key)
		}
		return nil, fmt.Errorf("sqlite: getting checklist item %s: %w", key, err)
	}

	return &item, nil
}

// List returns items ordered by key, optionally restricted to a key prefix.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.ChecklistItem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT key, checked, updated_at
		 FROM checklist_items
		 WHERE key LIKE ? ESCAPE '\'
		 ORDER BY key
		 LIMIT ? OFFSET ?`,
		likePrefix(opts.Prefix),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing checklist items: %w", err)
	}
	defer rows.Close()

	items := make([]model.ChecklistItem, 0, limit)
	for rows.Next() {
		var item model.ChecklistItem
		if err := rows.Scan(&item.Key, &item.Checked, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning checklist row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating checklist items: %w", err)
	}

	return items, nil
}

// Put upserts an item and stamps UpdatedAt.
func (db *DB) Put(ctx context.Context, item *model.ChecklistItem) error {
	item.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO checklist_items (key, checked, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			checked = excluded.checked,
			updated_at = excluded.updated_at`,
		item.Key,
		item.Checked,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving checklist item %s: %w", item.Key, err)
	}

	return nil
}

// Delete removes an item by key.
func (db *DB) Delete(ctx context.Context, key string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM checklist_items WHERE key = ?`,
		key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting checklist item %s: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("checklist item", key)
	}

	return nil
}

// likePrefix escapes LIKE wildcards so the prefix matches literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
