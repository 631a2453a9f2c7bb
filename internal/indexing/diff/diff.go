// Package diff brings an existing index in line with a freshly translated
// document set: every fresh document is (re)indexed and every listed
// document whose id is not a fresh canonical identifier is deleted.
package diff

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
)

// Option narrows a diff.
type Option func(*options)

type options struct {
	scope model.ContentType
}

// ScopedTo restricts deletion candidates to listed documents of the given
// content type, for indexes shared between types.
func ScopedTo(contentType model.ContentType) Option {
	return func(o *options) {
		o.scope = contentType
	}
}

// Result summarizes one update.
type Result struct {
	Indexed  int
	Deleted  int
	Rejected map[string]string
}

// Updater computes and applies incremental updates.
type Updater struct {
	store   store.Store
	batcher *bulk.Batcher
	metrics *metrics.Metrics
}

// New creates an Updater. m may be nil.
func New(s store.Store, batcher *bulk.Batcher, m *metrics.Metrics) *Updater {
	return &Updater{store: s, batcher: batcher, metrics: m}
}

// ComputeStaleIDs lists index once and returns the ids absent from the
// canonical identifiers of fresh. A listing failure, including a missing
// index, is returned as is.
func (u *Updater) ComputeStaleIDs(ctx context.Context, index string, fresh []model.TargetDocument, opts ...Option) (map[string]struct{}, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	listed, err := u.store.ListDocuments(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", index, err)
	}
	canonical := make(map[string]struct{}, len(fresh))
	for i := range fresh {
		canonical[fresh[i].CanonicalIdentifier()] = struct{}{}
	}
	stale := make(map[string]struct{})
	for _, doc := range listed {
		if o.scope != "" && doc.Type != string(o.scope) {
			continue
		}
		if _, ok := canonical[doc.ID]; !ok {
			stale[doc.ID] = struct{}{}
		}
	}
	return stale, nil
}

// UpdateIndex submits insert payloads for fresh followed by delete payloads
// for the stale ids. Nothing is submitted when both are empty. Item-level
// rejections are returned in the result, not as an error.
func (u *Updater) UpdateIndex(ctx context.Context, index string, fresh []model.TargetDocument, opts ...Option) (*Result, error) {
	log := logger.FromContext(ctx).With("component", "diff-updater", "index", index)

	stale, err := u.ComputeStaleIDs(ctx, index, fresh, opts...)
	if err != nil {
		return nil, err
	}
	inserts, err := u.batcher.BuildInsertBatches(fresh)
	if err != nil {
		return nil, err
	}
	deletes := u.batcher.BuildDeleteBatches(stale)

	payloads := append(inserts, deletes...)
	result := &Result{Rejected: map[string]string{}}
	if len(payloads) == 0 {
		log.Info("index already current")
		return result, nil
	}
	rejected, err := store.SubmitAll(ctx, u.store, index, payloads, u.metrics)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", index, err)
	}
	result.Indexed = len(fresh) - len(rejected)
	result.Deleted = len(stale)
	result.Rejected = rejected
	log.Info("index updated",
		"indexed", result.Indexed,
		"deleted", result.Deleted,
		"rejected", len(rejected),
		"payloads", len(payloads),
	)
	return result, nil
}
