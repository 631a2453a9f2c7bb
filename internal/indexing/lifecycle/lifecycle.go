// Package lifecycle recreates indexes with idempotent delete-then-create
// semantics.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// Manager creates and drops indexes through a store.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: slog.Default().With("component", "index-lifecycle"),
	}
}

// RecreateIndex drops name if it exists and creates it empty with mapping.
// A missing index is not an error; any other delete failure is returned
// without attempting the create.
func (m *Manager) RecreateIndex(ctx context.Context, name string, mapping model.Mapping) error {
	if err := m.DeleteIfExists(ctx, name); err != nil {
		return err
	}
	if err := m.store.CreateIndex(ctx, name, mapping); err != nil {
		return fmt.Errorf("creating index %s: %w", name, err)
	}
	m.logger.Debug("index recreated", "index", name)
	return nil
}

// DeleteIfExists drops name, treating a missing index as success.
func (m *Manager) DeleteIfExists(ctx context.Context, name string) error {
	err := m.store.DeleteIndex(ctx, name)
	switch {
	case err == nil:
		m.logger.Debug("index deleted", "index", name)
		return nil
	case errors.Is(err, apperrors.ErrIndexNotFound):
		return nil
	default:
		return fmt.Errorf("deleting index %s: %w", name, err)
	}
}
