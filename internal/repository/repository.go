package repository

import (
	"context"

	"github.com/sakif/js-playground/internal/model"
)

type ListOptions struct {
	Prefix string
	Limit  int
	Offset int
}

// ChecklistRepository stores checklist state keyed by item key.
type ChecklistRepository interface {
	Get(ctx context.Context, key string) (*model.ChecklistItem, error)
	List(ctx context.Context, opts ListOptions) ([]model.ChecklistItem, error)
	// Put inserts or replaces the item and sets its UpdatedAt.
	Put(ctx context.Context, item *model.ChecklistItem) error
	Delete(ctx context.Context, key string) error
}
