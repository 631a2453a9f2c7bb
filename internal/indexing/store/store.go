// Package store defines the document store contract the engine writes
// through, with an Elasticsearch implementation and an in-memory one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
)

// Document is one listed entry of an index.
type Document struct {
	ID     string
	Type   string
	Source json.RawMessage
}

// Store is the set of index operations the engine relies on. Missing
// indexes are reported with errors wrapping apperrors.ErrIndexNotFound; all
// other failures wrap apperrors.ErrStoreTransport.
type Store interface {
	CreateIndex(ctx context.Context, name string, mapping model.Mapping) error
	DeleteIndex(ctx context.Context, name string) error
	// ListDocuments returns every document of the index or alias.
	ListDocuments(ctx context.Context, name string) ([]Document, error)
	// Bulk submits one payload. Item-level rejections are returned as a
	// *BulkError after the rest of the payload was applied.
	Bulk(ctx context.Context, name string, payload bulk.Payload) error
	// ResolveAlias returns the physical index alias points to. It returns
	// alias itself when a concrete index of that name exists, and "" when
	// neither exists.
	ResolveAlias(ctx context.Context, alias string) (string, error)
	// SwapAlias atomically points alias at next. previous is the value
	// ResolveAlias returned: its alias binding is removed, or, when previous
	// equals alias, the concrete index is dropped in the same request.
	SwapAlias(ctx context.Context, alias, previous, next string) error
}

// BulkError carries the documents a bulk request rejected, keyed by id.
type BulkError struct {
	Index    string
	Failures map[string]string
}

func (e *BulkError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 5 {
		ids = append(ids[:5], "...")
	}
	return fmt.Sprintf("bulk request to %s rejected %d document(s): %s", e.Index, len(e.Failures), strings.Join(ids, ", "))
}

// SubmitAll submits payloads in order. Item rejections are collected and
// returned; any other error stops the submission.
func SubmitAll(ctx context.Context, s Store, index string, payloads []bulk.Payload, m *metrics.Metrics) (map[string]string, error) {
	rejected := make(map[string]string)
	for _, p := range payloads {
		if p.Operations == 0 {
			continue
		}
		if m != nil {
			m.BulkPayloadsTotal.Inc()
			m.BulkPayloadChars.Observe(float64(p.Len()))
		}
		err := s.Bulk(ctx, index, p)
		if err == nil {
			continue
		}
		var bulkErr *BulkError
		if !errors.As(err, &bulkErr) {
			return rejected, err
		}
		for id, reason := range bulkErr.Failures {
			rejected[id] = reason
		}
	}
	return rejected, nil
}
