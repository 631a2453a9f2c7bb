package indexing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lock"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/naming"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/report"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/translate"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	entities map[string][]model.SourceEntity
	failures map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{entities: map[string][]model.SourceEntity{}, failures: map[string]error{}}
}

func (f *fakeSource) set(queryID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SourceEntity, len(ids))
	for i, id := range ids {
		out[i] = model.SourceEntity{ID: id, Fields: map[string]any{"id": id, "title": "title " + id}}
	}
	f.entities[queryID] = out
}

func (f *fakeSource) FetchAll(ctx context.Context, queryID string, stage model.DataStage) ([]model.SourceEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[queryID]; err != nil {
		return nil, err
	}
	return f.entities[queryID], nil
}

type countingInvalidator struct {
	mu     sync.Mutex
	stages []model.DataStage
}

func (c *countingInvalidator) Invalidate(ctx context.Context, stage model.DataStage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, stage)
	return nil
}

func (c *countingInvalidator) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stages)
}

// testTranslate fails entities whose id starts with "bad".
func testTranslate(contentType model.ContentType) translate.Func {
	return func(src model.SourceEntity, stage model.DataStage, liveMode bool) (*model.TargetDocument, error) {
		if len(src.ID) >= 3 && src.ID[:3] == "bad" {
			return nil, model.NewTranslationError(src.ID, "missing title")
		}
		return &model.TargetDocument{
			ID:         src.ID,
			Identifier: []string{src.ID, string(contentType) + "/" + src.ID},
			Type:       contentType,
			Body:       map[string]any{"title": src.String("title")},
		}, nil
	}
}

func testRegistry() *translate.Registry {
	m := func(ct model.ContentType, auto bool) translate.Model {
		return translate.Model{
			Type:        ct,
			QueryIDs:    []string{"q-" + string(ct)},
			Mapping:     model.Mapping{"mappings": map[string]any{}},
			Translate:   testTranslate(ct),
			AutoRelease: auto,
		}
	}
	return translate.NewRegistry(
		m(model.Dataset, false),
		m(model.Software, false),
		m(model.Contributor, true),
	)
}

type fixture struct {
	store       *store.Memory
	source      *fakeSource
	invalidator *countingInvalidator
	journal     *journal.Memory
	metrics     *metrics.Metrics
	locker      lock.Locker
	engine      *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:       store.NewMemory(),
		source:      newFakeSource(),
		invalidator: &countingInvalidator{},
		journal:     journal.NewMemory(10),
		metrics:     metrics.NewWithRegistry(prometheus.NewRegistry()),
		locker:      lock.NewLocal(),
	}
	f.engine = NewEngine(Deps{
		Store:       f.store,
		Source:      f.source,
		Registry:    testRegistry(),
		Locker:      f.locker,
		Invalidator: f.invalidator,
		Journal:     f.journal,
		Metrics:     f.metrics,
	}, Options{Parallelism: 2, MaxPayloadChars: 200})
	return f
}

func (f *fixture) ids(t *testing.T, name string) []string {
	t.Helper()
	docs, err := f.store.ListDocuments(context.Background(), name)
	require.NoError(t, err)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	sort.Strings(out)
	return out
}

func TestFullReplacementByTypeEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.source.set("q-Dataset", "ds-1", "bad-2", "ds-3")
	ctx := context.Background()

	rep, err := f.engine.RunFullReplacementByType(ctx, model.StageReleased, model.Dataset)
	require.NoError(t, err)
	assert.Equal(t, report.Report{ErrorsByTarget: []report.TargetErrors{{
		TargetType:     "Dataset",
		ErrorsBySource: []report.SourceError{{SourceID: "bad-2", Message: "missing title"}},
	}}}, rep)

	alias := naming.IndexName(model.StageReleased, model.Dataset)
	current, err := f.store.ResolveAlias(ctx, alias)
	require.NoError(t, err)
	assert.Equal(t, alias+"_blue", current)
	assert.Equal(t, []string{"ds-1", "ds-3"}, f.ids(t, alias))
	assert.Equal(t, []string{"ds-1", "ds-3"}, f.ids(t, naming.IdentifiersIndexName(model.StageReleased)))
	assert.Equal(t, 1, f.invalidator.calls())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TranslationErrors.WithLabelValues("Dataset")))
}

func TestFullReplacementIdentifiersCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.set("q-Dataset", "ds-1", "ds-2")
	f.source.set("q-Software", "sw-1")

	rep, err := f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	identifiers := naming.IdentifiersIndexName(model.StageReleased)
	assert.Equal(t, []string{"ds-1", "ds-2", "sw-1"}, f.ids(t, identifiers))
	assert.Equal(t, 1, f.invalidator.calls())

	f.source.set("q-Dataset", "ds-2", "ds-9")
	rep, err = f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	assert.Equal(t, []string{"ds-2", "ds-9", "sw-1"}, f.ids(t, identifiers))
	assert.Equal(t, []string{"ds-2", "ds-9"}, f.ids(t, naming.IndexName(model.StageReleased, model.Dataset)))
	assert.Equal(t, 2, f.invalidator.calls())
}

func TestFullReplacementContainsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.set("q-Dataset", "ds-1", "bad-x", "ds-2")
	f.source.set("q-Software", "sw-1")
	_, err := f.engine.RunFullReplacement(ctx, model.StageInProgress)
	require.NoError(t, err)

	f.source.set("q-Software", "sw-1", "sw-2")
	f.store.InjectFault(store.OpBulk, naming.IndexName(model.StageInProgress, model.Software)+"_green", errors.New("disk full"))
	rep, err := f.engine.RunFullReplacement(ctx, model.StageInProgress)
	require.NoError(t, err)

	require.Len(t, rep.ErrorsByTarget, 2)
	assert.Equal(t, "Dataset", rep.ErrorsByTarget[0].TargetType)
	assert.Equal(t, []report.SourceError{{SourceID: "bad-x", Message: "missing title"}}, rep.ErrorsByTarget[0].ErrorsBySource)
	assert.Equal(t, "Software", rep.ErrorsByTarget[1].TargetType)
	assert.Equal(t, report.FatalSourceID, rep.ErrorsByTarget[1].ErrorsBySource[0].SourceID)

	assert.Equal(t, []string{"ds-1", "ds-2"}, f.ids(t, naming.IndexName(model.StageInProgress, model.Dataset)))
	assert.Equal(t, []string{"sw-1"}, f.ids(t, naming.IndexName(model.StageInProgress, model.Software)))
	assert.Equal(t, 0, f.invalidator.calls(), "in-progress runs never notify")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ContentTypeFailures.WithLabelValues("Software")))
}

func TestFullReplacementUpstreamFailureKeepsPreviousIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.set("q-Dataset", "ds-1")
	f.source.set("q-Software", "sw-1")
	_, err := f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)

	f.source.failures["q-Dataset"] = apperrors.ErrUpstreamQuery
	rep, err := f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)
	require.Len(t, rep.ErrorsByTarget, 1)
	assert.Equal(t, "Dataset", rep.ErrorsByTarget[0].TargetType)
	assert.Equal(t, []string{"ds-1"}, f.ids(t, naming.IndexName(model.StageReleased, model.Dataset)))
	assert.Equal(t, []string{"ds-1", "sw-1"}, f.ids(t, naming.IdentifiersIndexName(model.StageReleased)),
		"entries of a content type that could not be fetched are kept")
	assert.Equal(t, 2, f.invalidator.calls(), "partial runs still notify")

	entries, err := f.journal.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomePartial, entries[0].Outcome)
	assert.Equal(t, 1, entries[0].ErrorCount)
}

func TestIncrementalUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.set("q-Dataset", "A", "B", "C")
	f.source.set("q-Software", "S")
	_, err := f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)

	f.source.set("q-Dataset", "B", "C", "D")
	rep, err := f.engine.RunIncrementalUpdate(ctx, model.StageReleased)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	assert.Equal(t, []string{"B", "C", "D"}, f.ids(t, naming.IndexName(model.StageReleased, model.Dataset)))
	assert.Equal(t, []string{"B", "C", "D", "S"}, f.ids(t, naming.IdentifiersIndexName(model.StageReleased)))
	assert.Equal(t, 2, f.invalidator.calls())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DocsDeletedTotal.WithLabelValues("Dataset")))
}

func TestIncrementalUpdateByTypeMissingIndex(t *testing.T) {
	f := newFixture(t)
	f.source.set("q-Software", "S")

	rep, err := f.engine.RunIncrementalUpdateByType(context.Background(), model.StageReleased, model.Software)
	require.NoError(t, err)
	require.Len(t, rep.ErrorsByTarget, 1)
	assert.Equal(t, "Software", rep.ErrorsByTarget[0].TargetType)
	assert.Equal(t, report.FatalSourceID, rep.ErrorsByTarget[0].ErrorsBySource[0].SourceID)
	assert.Contains(t, rep.ErrorsByTarget[0].ErrorsBySource[0].Message, "index not found")
}

func TestAutoReleaseRunsDoNotNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.set("q-Dataset", "ds-1")
	f.source.set("q-Software", "sw-1")
	f.source.set("q-Contributor", "c-1", "c-2")

	_, err := f.engine.RunFullReplacement(ctx, model.StageReleased)
	require.NoError(t, err)
	require.Equal(t, 1, f.invalidator.calls())

	rep, err := f.engine.RunFullReplacementAutoRelease(ctx, model.StageReleased)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	assert.Equal(t, []string{"c-1", "c-2"}, f.ids(t, naming.IndexName(model.StageReleased, model.Contributor)))
	identifiers := naming.IdentifiersIndexName(model.StageReleased)
	assert.Equal(t, []string{"c-1", "c-2", "ds-1", "sw-1"}, f.ids(t, identifiers))

	f.source.set("q-Contributor", "c-2")
	rep, err = f.engine.RunIncrementalUpdateAutoRelease(ctx, model.StageReleased)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	assert.Equal(t, []string{"c-2", "ds-1", "sw-1"}, f.ids(t, identifiers))
	assert.Equal(t, 1, f.invalidator.calls())
}

func TestIncrementalUpdateByTypeSkipsAutoReleaseTypes(t *testing.T) {
	f := newFixture(t)
	f.source.set("q-Contributor", "c-1")

	rep, err := f.engine.RunIncrementalUpdateByType(context.Background(), model.StageReleased, model.Contributor)
	require.NoError(t, err)
	assert.Equal(t, report.Report{}, rep)
	assert.Equal(t, 0, f.invalidator.calls())
	_, err = f.store.ListDocuments(context.Background(), naming.IndexName(model.StageReleased, model.Contributor))
	assert.True(t, errors.Is(err, apperrors.ErrIndexNotFound))
	_, err = f.store.ListDocuments(context.Background(), naming.IdentifiersIndexName(model.StageReleased))
	assert.True(t, errors.Is(err, apperrors.ErrIndexNotFound))
}

func TestByTypeBootstrapsIdentifiersIndex(t *testing.T) {
	f := newFixture(t)
	f.source.set("q-Software", "sw-1", "sw-2")

	rep, err := f.engine.RunFullReplacementByType(context.Background(), model.StageInProgress, model.Software)
	require.NoError(t, err)
	assert.True(t, rep.Successful())
	assert.Equal(t, []string{"sw-1", "sw-2"}, f.ids(t, naming.IdentifiersIndexName(model.StageInProgress)))
}

func TestRunRejectedWhileLeaseHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lease, err := f.locker.Acquire(ctx, []string{lock.ContentTypeKey(model.StageReleased, model.Dataset)})
	require.NoError(t, err)

	_, err = f.engine.RunFullReplacementByType(ctx, model.StageReleased, model.Dataset)
	assert.True(t, errors.Is(err, apperrors.ErrRunInProgress))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockConflictsTotal))
	assert.Equal(t, 0, f.invalidator.calls())

	require.NoError(t, lease.Release(ctx))
	f.source.set("q-Dataset", "ds-1")
	_, err = f.engine.RunFullReplacementByType(ctx, model.StageReleased, model.Dataset)
	assert.NoError(t, err)
}

func TestUnknownContentType(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RunFullReplacementByType(context.Background(), model.StageReleased, "Unicorn")
	assert.True(t, errors.Is(err, apperrors.ErrUnknownContentType))
	_, err = f.engine.RunIncrementalUpdateByType(context.Background(), model.StageReleased, "Unicorn")
	assert.True(t, errors.Is(err, apperrors.ErrUnknownContentType))
}
