// Package indexing is the index synchronization engine. A run fetches the
// entities of each content type from the metadata source, translates them,
// and either rebuilds the content type's index behind its alias or applies
// an incremental diff. Failures are contained per content type and returned
// as a report.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/diff"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lock"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/naming"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/replace"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/report"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/translate"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/tracing"
)

// Source fetches every entity of a stored query.
type Source interface {
	FetchAll(ctx context.Context, queryID string, stage model.DataStage) ([]model.SourceEntity, error)
}

// Invalidator is told when the RELEASED indexes changed so derived caches
// can refresh.
type Invalidator interface {
	Invalidate(ctx context.Context, stage model.DataStage) error
}

// Journal records run metadata.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Deps are the collaborators of an Engine. Invalidator, Journal and Metrics
// may be nil.
type Deps struct {
	Store       store.Store
	Source      Source
	Registry    *translate.Registry
	Locker      lock.Locker
	Invalidator Invalidator
	Journal     Journal
	Metrics     *metrics.Metrics
}

// Options tune an Engine.
type Options struct {
	// Parallelism bounds how many content types are processed at once.
	Parallelism     int
	MaxPayloadChars int
	TracingEnabled  bool
}

// Engine runs full replacements and incremental updates.
type Engine struct {
	deps     Deps
	opts     Options
	replacer *replace.Orchestrator
	updater  *diff.Updater
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(deps Deps, opts Options) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	batcher := bulk.New(opts.MaxPayloadChars)
	return &Engine{
		deps:     deps,
		opts:     opts,
		replacer: replace.New(deps.Store, lifecycle.New(deps.Store), batcher, deps.Metrics),
		updater:  diff.New(deps.Store, batcher, deps.Metrics),
		logger:   slog.Default().With("component", "engine"),
	}
}

type mode string

const (
	modeFull        mode = "full"
	modeIncremental mode = "incremental"
)

// runSpec describes one run. scoped runs touch only the identifiers entries
// of their own content types.
type runSpec struct {
	kind        string
	mode        mode
	stage       model.DataStage
	models      []translate.Model
	scoped      bool
	autoRelease bool
}

// RunFullReplacement rebuilds the identifiers index and the index of every
// content type that is not auto-released.
func (e *Engine) RunFullReplacement(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return e.run(ctx, runSpec{kind: "full", mode: modeFull, stage: stage, models: e.deps.Registry.Models()})
}

// RunFullReplacementByType rebuilds the index of one content type and
// updates its identifiers entries.
func (e *Engine) RunFullReplacementByType(ctx context.Context, stage model.DataStage, contentType model.ContentType) (report.Report, error) {
	m, err := e.deps.Registry.Get(contentType)
	if err != nil {
		return report.Report{}, err
	}
	return e.run(ctx, runSpec{kind: "full_by_type", mode: modeFull, stage: stage, models: []translate.Model{m}, scoped: true})
}

// RunFullReplacementAutoRelease rebuilds the indexes of the auto-released
// content types. It never notifies the invalidator.
func (e *Engine) RunFullReplacementAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return e.run(ctx, runSpec{
		kind: "full_autorelease", mode: modeFull, stage: stage,
		models: e.deps.Registry.AutoRelease(), scoped: true, autoRelease: true,
	})
}

// RunIncrementalUpdate diffs the index of every content type that is not
// auto-released against the metadata source.
func (e *Engine) RunIncrementalUpdate(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return e.run(ctx, runSpec{kind: "incremental", mode: modeIncremental, stage: stage, models: e.deps.Registry.Models(), scoped: true})
}

// RunIncrementalUpdateByType diffs the index of one content type.
// Auto-released types are left to RunIncrementalUpdateAutoRelease and
// produce an empty report here.
func (e *Engine) RunIncrementalUpdateByType(ctx context.Context, stage model.DataStage, contentType model.ContentType) (report.Report, error) {
	m, err := e.deps.Registry.Get(contentType)
	if err != nil {
		return report.Report{}, err
	}
	if m.AutoRelease {
		logger.FromContext(ctx).Debug("incremental update skipped for auto-released type",
			"component", "engine", "content_type", contentType, "stage", stage)
		return report.Report{}, nil
	}
	return e.run(ctx, runSpec{kind: "incremental_by_type", mode: modeIncremental, stage: stage, models: []translate.Model{m}, scoped: true})
}

// RunIncrementalUpdateAutoRelease diffs the indexes of the auto-released
// content types. It never notifies the invalidator.
func (e *Engine) RunIncrementalUpdateAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return e.run(ctx, runSpec{
		kind: "incremental_autorelease", mode: modeIncremental, stage: stage,
		models: e.deps.Registry.AutoRelease(), scoped: true, autoRelease: true,
	})
}

func (e *Engine) run(ctx context.Context, spec runSpec) (report.Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx).With("component", "engine", "kind", spec.kind, "stage", spec.stage)

	types := make([]string, len(spec.models))
	keys := make([]string, 0, len(spec.models)+1)
	for i, m := range spec.models {
		types[i] = string(m.Type)
		keys = append(keys, lock.ContentTypeKey(spec.stage, m.Type))
	}
	keys = append(keys, lock.IdentifiersKey(spec.stage))

	lease, err := e.deps.Locker.Acquire(ctx, keys)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) && e.deps.Metrics != nil {
			e.deps.Metrics.LockConflictsTotal.Inc()
		}
		log.Warn("run rejected", "error", err)
		e.finish(ctx, spec, runID, types, started, journal.OutcomeRejected, 0)
		return report.Report{}, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to release run lease", "error", err)
		}
	}()

	log.Info("run started", "run_id", runID, "content_types", types)
	ctx, span := tracing.StartSpan(ctx, spec.kind, runID)
	span.SetAttr("stage", string(spec.stage))

	acc := report.NewAccumulator()
	prepared := e.prepare(ctx, spec, acc)
	switch spec.mode {
	case modeFull:
		e.updateIdentifiers(ctx, spec, prepared, acc)
		e.replaceAll(ctx, spec, prepared, acc)
	case modeIncremental:
		e.updateAll(ctx, spec, prepared, acc)
		e.updateIdentifiers(ctx, spec, prepared, acc)
	}

	if spec.stage == model.StageReleased && !spec.autoRelease && e.deps.Invalidator != nil {
		if err := e.deps.Invalidator.Invalidate(ctx, spec.stage); err != nil {
			log.Error("failed to notify cache invalidation", "error", err)
		}
	}

	rep := acc.Report()
	span.SetAttr("errors", rep.ErrorCount())
	span.End(nil)
	if e.opts.TracingEnabled {
		span.Log(log)
	}

	outcome := journal.OutcomeSuccess
	if !rep.Successful() {
		outcome = journal.OutcomePartial
	}
	e.finish(ctx, spec, runID, types, started, outcome, rep.ErrorCount())
	log.Info("run finished",
		"outcome", outcome,
		"errors", rep.ErrorCount(),
		"duration", time.Since(started),
	)
	return rep, nil
}

func (e *Engine) finish(ctx context.Context, spec runSpec, runID string, types []string, started time.Time, outcome journal.Outcome, errCount int) {
	elapsed := time.Since(started)
	if m := e.deps.Metrics; m != nil {
		m.RunsTotal.WithLabelValues(spec.kind, string(spec.stage), string(outcome)).Inc()
		if outcome != journal.OutcomeRejected {
			m.RunDuration.WithLabelValues(spec.kind, string(spec.stage)).Observe(elapsed.Seconds())
		}
	}
	if e.deps.Journal == nil {
		return
	}
	err := e.deps.Journal.Record(context.WithoutCancel(ctx), journal.Entry{
		RunID:        runID,
		Kind:         spec.kind,
		Stage:        string(spec.stage),
		ContentTypes: types,
		StartedAt:    started.UTC(),
		Duration:     elapsed,
		ErrorCount:   errCount,
		Outcome:      outcome,
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to record run", "error", err)
	}
}

// prepared holds the translated documents of one content type. ok is false
// when fetching failed and the content type must not be written.
type prepared struct {
	model translate.Model
	docs  []model.TargetDocument
	ok    bool
}

// prepare fetches and translates every content type of the run.
func (e *Engine) prepare(ctx context.Context, spec runSpec, acc *report.Accumulator) []prepared {
	out := make([]prepared, len(spec.models))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, m := range spec.models {
		g.Go(func() error {
			_, span := tracing.StartChildSpan(gctx, "fetch "+string(m.Type))
			docs, err := e.fetchAndTranslate(gctx, spec.stage, m, acc)
			span.SetAttr("documents", len(docs))
			span.End(err)
			if err != nil {
				e.failContentType(gctx, acc, m.Type, err)
				out[i] = prepared{model: m}
				return nil
			}
			out[i] = prepared{model: m, docs: docs, ok: true}
			return nil
		})
	}
	g.Wait()
	return out
}

func (e *Engine) fetchAndTranslate(ctx context.Context, stage model.DataStage, m translate.Model, acc *report.Accumulator) ([]model.TargetDocument, error) {
	var docs []model.TargetDocument
	for _, queryID := range m.QueryIDs {
		entities, err := e.deps.Source.FetchAll(ctx, queryID, stage)
		if err != nil {
			return nil, err
		}
		translated, errs := translate.TranslateAll(m, entities, stage, false)
		for _, err := range errs {
			acc.AddError(m.Type, err)
		}
		if e.deps.Metrics != nil && len(errs) > 0 {
			e.deps.Metrics.TranslationErrors.WithLabelValues(string(m.Type)).Add(float64(len(errs)))
		}
		docs = append(docs, translated...)
	}
	return docs, nil
}

func (e *Engine) failContentType(ctx context.Context, acc *report.Accumulator, contentType model.ContentType, err error) {
	logger.FromContext(ctx).Error("content type failed", "content_type", contentType, "error", err)
	acc.Fail(contentType, err)
	if e.deps.Metrics != nil {
		e.deps.Metrics.ContentTypeFailures.WithLabelValues(string(contentType)).Inc()
	}
}

// replaceAll rebuilds each prepared content type behind its alias.
func (e *Engine) replaceAll(ctx context.Context, spec runSpec, items []prepared, acc *report.Accumulator) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for _, item := range items {
		if !item.ok {
			continue
		}
		g.Go(func() error {
			sctx, span := tracing.StartChildSpan(gctx, "replace "+string(item.model.Type))
			target := replace.Target{Alias: naming.IndexName(spec.stage, item.model.Type), Mapping: item.model.Mapping}
			res, err := e.replacer.Replace(sctx, target, item.docs)
			span.End(err)
			if err != nil {
				e.failContentType(gctx, acc, item.model.Type, err)
				return nil
			}
			e.recordRejected(acc, item.model.Type, res.Rejected)
			e.countIndexed(item.model.Type, res.Indexed, 0)
			return nil
		})
	}
	g.Wait()
}

// updateAll applies the incremental diff to each prepared content type. A
// content type whose update fails is marked not ok so its identifiers
// entries are left alone.
func (e *Engine) updateAll(ctx context.Context, spec runSpec, items []prepared, acc *report.Accumulator) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i := range items {
		item := &items[i]
		if !item.ok {
			continue
		}
		g.Go(func() error {
			sctx, span := tracing.StartChildSpan(gctx, "update "+string(item.model.Type))
			res, err := e.updater.UpdateIndex(sctx, naming.IndexName(spec.stage, item.model.Type), item.docs)
			span.End(err)
			if err != nil {
				e.failContentType(gctx, acc, item.model.Type, err)
				item.ok = false
				return nil
			}
			e.recordRejected(acc, item.model.Type, res.Rejected)
			e.countIndexed(item.model.Type, res.Indexed, res.Deleted)
			return nil
		})
	}
	g.Wait()
}

// updateIdentifiers brings the identifiers index in line with the prepared
// documents. Unscoped runs rebuild it from the union of every content type.
// Scoped runs, and unscoped runs where a content type could not be fetched,
// diff only the entries of the prepared content types, bootstrapping the
// index if it does not exist yet.
func (e *Engine) updateIdentifiers(ctx context.Context, spec runSpec, items []prepared, acc *report.Accumulator) {
	sctx, span := tracing.StartChildSpan(ctx, "identifiers")
	err := e.syncIdentifiers(sctx, spec, items, acc)
	span.End(err)
	if err != nil {
		logger.FromContext(ctx).Error("identifiers index update failed", "error", err)
		acc.Fail(model.IdentifiersTarget, err)
	}
}

func (e *Engine) syncIdentifiers(ctx context.Context, spec runSpec, items []prepared, acc *report.Accumulator) error {
	alias := naming.IdentifiersIndexName(spec.stage)
	target := replace.Target{Alias: alias, Mapping: translate.IdentifiersMapping()}

	if !spec.scoped && allPrepared(items) {
		var all []model.TargetDocument
		for _, item := range items {
			if item.ok {
				all = append(all, identifierDocs(item.docs)...)
			}
		}
		res, err := e.replacer.Replace(ctx, target, all)
		if err != nil {
			return err
		}
		e.recordRejected(acc, model.IdentifiersTarget, res.Rejected)
		return nil
	}

	var errs []error
	for _, item := range items {
		if !item.ok {
			continue
		}
		docs := identifierDocs(item.docs)
		res, err := e.updater.UpdateIndex(ctx, alias, docs, diff.ScopedTo(item.model.Type))
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			logger.FromContext(ctx).Info("identifiers index missing, creating it", "index", alias)
			var rr *replace.Result
			rr, err = e.replacer.Replace(ctx, target, docs)
			if err == nil {
				res = &diff.Result{Indexed: rr.Indexed, Rejected: rr.Rejected}
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s entries: %w", item.model.Type, err))
			continue
		}
		e.recordRejected(acc, model.IdentifiersTarget, res.Rejected)
	}
	return errors.Join(errs...)
}

func allPrepared(items []prepared) bool {
	for _, item := range items {
		if !item.ok {
			return false
		}
	}
	return true
}

func identifierDocs(docs []model.TargetDocument) []model.TargetDocument {
	out := make([]model.TargetDocument, len(docs))
	for i := range docs {
		out[i] = docs[i].IdentifierDocument()
	}
	return out
}

func (e *Engine) recordRejected(acc *report.Accumulator, contentType model.ContentType, rejected map[string]string) {
	for id, reason := range rejected {
		acc.Add(contentType, id, reason)
	}
}

func (e *Engine) countIndexed(contentType model.ContentType, indexed, deleted int) {
	if e.deps.Metrics == nil {
		return
	}
	e.deps.Metrics.DocsIndexedTotal.WithLabelValues(string(contentType)).Add(float64(indexed))
	e.deps.Metrics.DocsDeletedTotal.WithLabelValues(string(contentType)).Add(float64(deleted))
}
