// Package service holds the business rules between the HTTP handlers and
// the repositories. Services take and return domain types and apperror
// values; they know nothing about HTTP or SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/model"
	"github.com/sakif/js-playground/internal/repository"
)

const (
	MaxKeyLength     = 128
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ChecklistService manages lesson checklist state.
type ChecklistService struct {
	repo   repository.ChecklistRepository
	logger *slog.Logger
}

// NewChecklistService creates a new ChecklistService.
func NewChecklistService(repo repository.ChecklistRepository, logger *slog.Logger) *ChecklistService {
	return &ChecklistService{
		repo:   repo,
		logger: logger,
	}
}

// Get returns the item stored under key.
func (s *ChecklistService) Get(ctx context.Context, key string) (*model.ChecklistItem, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, key)
}

// List returns items whose key starts with prefix, paginated.
func (s *ChecklistService) List(ctx context.Context, prefix string, limit, offset int) ([]model.ChecklistItem, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, repository.ListOptions{
		Prefix: strings.TrimSpace(prefix),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list checklist items", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing checklist items: %w", err)
	}
	return items, nil
}

// Set stores the checked state of key.
func (s *ChecklistService) Set(ctx context.Context, key string, checked bool) (*model.ChecklistItem, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	item := &model.ChecklistItem{Key: key, Checked: checked}
	if err := s.repo.Put(ctx, item); err != nil {
		s.logger.Error("failed to save checklist item",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving checklist item: %w", err)
	}

	s.logger.Debug("checklist item saved",
		slog.String("key", key),
		slog.Bool("checked", checked),
	)
	return item, nil
}

// Delete forgets key.
func (s *ChecklistService) Delete(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, key)
}

// normalizeKey trims key and rejects empty, oversized or whitespace-bearing
// keys.
func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", apperror.ValidationFailed("key", "checklist key is required")
	}
	if len(key) > MaxKeyLength {
		return "", apperror.ValidationFailed("key",
			fmt.Sprintf("checklist key must be %d characters or less", MaxKeyLength))
	}
	if strings.IndexFunc(key, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", apperror.ValidationFailed("key", "checklist key must not contain whitespace")
	}
	return key, nil
}
