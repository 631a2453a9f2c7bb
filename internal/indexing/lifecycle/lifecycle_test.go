package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mapping = model.Mapping{"mappings": map[string]any{"properties": map[string]any{}}}

func TestRecreateIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := New(s)

	require.NoError(t, m.RecreateIndex(ctx, "idx", mapping))

	payloads, err := bulk.New(bulk.DefaultMaxSize).BuildInsertBatches([]model.TargetDocument{
		{ID: "a", Identifier: []string{"a"}},
	})
	require.NoError(t, err)
	_, err = store.SubmitAll(ctx, s, "idx", payloads, nil)
	require.NoError(t, err)

	require.NoError(t, m.RecreateIndex(ctx, "idx", mapping))
	require.NoError(t, m.RecreateIndex(ctx, "idx", mapping))

	listed, err := s.ListDocuments(ctx, "idx")
	require.NoError(t, err)
	assert.Empty(t, listed)
	got, ok := s.Mapping("idx")
	require.True(t, ok)
	assert.Equal(t, mapping, got)
}

func TestRecreateIndexPropagatesDeleteFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	boom := errors.New("cluster unavailable")
	s.InjectFault(store.OpDelete, "idx", boom)

	err := New(s).RecreateIndex(ctx, "idx", mapping)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.IndexNames(), "create must not run after a failed delete")
}

func TestRecreateIndexPropagatesCreateFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	s.InjectFault(store.OpCreate, "idx", apperrors.ErrStoreTransport)

	err := New(s).RecreateIndex(ctx, "idx", mapping)
	assert.ErrorIs(t, err, apperrors.ErrStoreTransport)
}
