// Package replace rebuilds an index behind its alias: it fills the spare
// physical slot and then repoints the alias in one atomic request, so
// readers see either the previous or the new content.
package replace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/naming"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
)

// State is a step of one replacement.
type State string

const (
	StateStart              State = "START"
	StateTempIndexCreated   State = "TEMP_INDEX_CREATED"
	StateTempIndexPopulated State = "TEMP_INDEX_POPULATED"
	StateSwapped            State = "SWAPPED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Target describes the index being rebuilt.
type Target struct {
	Alias   string
	Mapping model.Mapping
}

// Result describes a finished or failed replacement.
type Result struct {
	State    State
	Previous string
	Temp     string
	Indexed  int
	Rejected map[string]string
}

// Orchestrator runs replacements.
type Orchestrator struct {
	store     store.Store
	lifecycle *lifecycle.Manager
	batcher   *bulk.Batcher
	metrics   *metrics.Metrics
}

// New creates an Orchestrator. m may be nil.
func New(s store.Store, lm *lifecycle.Manager, batcher *bulk.Batcher, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{store: s, lifecycle: lm, batcher: batcher, metrics: m}
}

type run struct {
	result *Result
	logger *slog.Logger
	m      *metrics.Metrics
}

func (r *run) transition(to State) {
	r.logger.Info("replacement transition", "from", r.result.State, "to", to)
	r.result.State = to
	if r.m != nil {
		r.m.ReplacementSteps.WithLabelValues(string(to)).Inc()
	}
}

func (r *run) fail(err error) (*Result, error) {
	r.logger.Error("replacement failed", "state", r.result.State, "error", err)
	r.transition(StateFailed)
	return r.result, err
}

// Replace rebuilds target with docs. On error the alias still points to the
// previous index and the result is in StateFailed. Documents the store
// rejects individually are reported in Result.Rejected and do not fail the
// replacement.
func (o *Orchestrator) Replace(ctx context.Context, target Target, docs []model.TargetDocument) (*Result, error) {
	r := &run{
		result: &Result{State: StateStart, Rejected: map[string]string{}},
		logger: logger.FromContext(ctx).With("component", "replacement", "alias", target.Alias),
		m:      o.metrics,
	}

	previous, err := o.store.ResolveAlias(ctx, target.Alias)
	if err != nil {
		return r.fail(fmt.Errorf("resolving %s: %w", target.Alias, err))
	}
	temp := naming.TempSlot(target.Alias, previous)
	r.result.Previous = previous
	r.result.Temp = temp

	if err := o.lifecycle.RecreateIndex(ctx, temp, target.Mapping); err != nil {
		return r.fail(err)
	}
	r.transition(StateTempIndexCreated)

	payloads, err := o.batcher.BuildInsertBatches(docs)
	if err != nil {
		return r.fail(err)
	}
	rejected, err := store.SubmitAll(ctx, o.store, temp, payloads, o.metrics)
	if err != nil {
		return r.fail(fmt.Errorf("populating %s: %w", temp, err))
	}
	r.result.Rejected = rejected
	r.result.Indexed = len(docs) - len(rejected)
	r.transition(StateTempIndexPopulated)

	if err := o.store.SwapAlias(ctx, target.Alias, previous, temp); err != nil {
		return r.fail(fmt.Errorf("swapping %s to %s: %w", target.Alias, temp, err))
	}
	r.transition(StateSwapped)

	// a legacy concrete index was dropped by the swap itself
	if previous != "" && previous != target.Alias {
		if err := o.lifecycle.DeleteIfExists(ctx, previous); err != nil {
			r.logger.Warn("failed to drop previous index", "index", previous, "error", err)
		}
	}
	r.transition(StateDone)
	r.logger.Info("index replaced",
		"index", temp,
		"previous", previous,
		"indexed", r.result.Indexed,
		"rejected", len(rejected),
	)
	return r.result, nil
}
