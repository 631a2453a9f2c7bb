//go:build integration

// Package integration runs the synchronization engine against a real
// Elasticsearch cluster, with the metadata source served by httptest and the
// run lease held in miniredis.
//
// Run with:
//
//	TEST_ELASTICSEARCH_URL=http://localhost:9200 go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lock"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/naming"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/source"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/translate"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/elastic"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetQueryID = "e09b4984-5272-431e-8d3b-7d498328d8ee"

// metadataSource serves paged query results for the dataset query and empty
// results for every other query.
type metadataSource struct {
	mu       sync.Mutex
	datasets []map[string]any
}

func (s *metadataSource) setDatasets(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = s.datasets[:0]
	for _, id := range ids {
		s.datasets = append(s.datasets, map[string]any{
			"id":       "https://kg.example.org/api/instances/" + id,
			"fullName": "Integration dataset " + id,
			"version":  "v1",
		})
	}
}

func (s *metadataSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, _ := strconv.Atoi(r.URL.Query().Get("from"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	var data []map[string]any
	if strings.Contains(r.URL.Path, datasetQueryID) {
		data = s.datasets
	}
	total := len(data)
	end := min(from+size, total)
	if from > total {
		from = total
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data[from:end], "total": total, "from": from, "size": size})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newEngine(t *testing.T) (*indexing.Engine, *metadataSource, *store.Elastic) {
	t.Helper()
	es, err := elastic.NewClient(config.ElasticsearchConfig{
		Addresses: []string{envOrDefault("TEST_ELASTICSEARCH_URL", "http://localhost:9200")},
	})
	if err != nil {
		t.Skipf("skipping integration test: elasticsearch unavailable: %v", err)
	}
	docs := store.NewElastic(es, store.ElasticConfig{ScrollSize: 2, ScrollKeep: time.Minute})

	src := &metadataSource{}
	srv := httptest.NewServer(src)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	engine := indexing.NewEngine(indexing.Deps{
		Store: docs,
		Source: source.NewClient(config.SourceConfig{
			Endpoint:       srv.URL,
			PageSize:       2,
			RequestTimeout: 10 * time.Second,
			MaxAttempts:    1,
		}),
		Registry: translate.Default(),
		Locker:   lock.NewRedis(pkgredis.Wrap(rdb), time.Minute),
		Journal:  journal.NewMemory(10),
	}, indexing.Options{Parallelism: 2, MaxPayloadChars: 600})
	return engine, src, docs
}

func listedIDs(t *testing.T, docs *store.Elastic, index string) []string {
	t.Helper()
	listed, err := docs.ListDocuments(context.Background(), index)
	require.NoError(t, err)
	ids := make([]string, 0, len(listed))
	for _, d := range listed {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestReplaceThenUpdate(t *testing.T) {
	engine, src, docs := newEngine(t)
	ctx := context.Background()
	index := naming.IndexName(model.StageInProgress, model.Dataset)

	src.setDatasets("a", "b", "c", "d", "e")
	rep, err := engine.RunFullReplacementByType(ctx, model.StageInProgress, model.Dataset)
	require.NoError(t, err)
	assert.True(t, rep.Successful(), "%+v", rep)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, listedIDs(t, docs, index))

	src.setDatasets("a", "c", "f")
	rep, err = engine.RunIncrementalUpdateByType(ctx, model.StageInProgress, model.Dataset)
	require.NoError(t, err)
	assert.True(t, rep.Successful(), "%+v", rep)
	assert.ElementsMatch(t, []string{"a", "c", "f"}, listedIDs(t, docs, index))

	src.setDatasets("z")
	_, err = engine.RunFullReplacementByType(ctx, model.StageInProgress, model.Dataset)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, listedIDs(t, docs, index))

	concrete, err := docs.ResolveAlias(ctx, index)
	require.NoError(t, err)
	assert.True(t, concrete == naming.SlotName(index, "blue") || concrete == naming.SlotName(index, "green"), concrete)
}
