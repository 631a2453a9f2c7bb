package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES answers the subset of the Elasticsearch REST API the store uses.
type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	handle   func(w http.ResponseWriter, r *http.Request, body string) bool
}

func newFakeES(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body string) bool) (*Elastic, *fakeES) {
	t.Helper()
	f := &fakeES{bodies: make(map[string]string), handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, key)
		f.bodies[key] = string(raw)
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !f.handle(w, r, string(raw)) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
		}
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElastic(es, ElasticConfig{ScrollSize: 2}), f
}

func (f *fakeES) body(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func TestElasticCreateIndexSendsMapping(t *testing.T) {
	s, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		if r.Method == http.MethodPut && r.URL.Path == "/idx_blue" {
			w.Write([]byte(`{"acknowledged":true}`))
			return true
		}
		return false
	})
	mapping := model.Mapping{"mappings": map[string]any{"properties": map[string]any{"title": map[string]any{"type": "text"}}}}
	require.NoError(t, s.CreateIndex(context.Background(), "idx_blue", mapping))
	assert.JSONEq(t, `{"mappings":{"properties":{"title":{"type":"text"}}}}`, f.body("PUT /idx_blue"))
}

func TestElasticDeleteIndexNotFound(t *testing.T) {
	s, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool { return false })
	err := s.DeleteIndex(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func TestElasticTransportErrorStatus(t *testing.T) {
	s, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"resource_already_exists_exception","reason":"exists"},"status":400}`))
		return true
	})
	err := s.CreateIndex(context.Background(), "idx", nil)
	assert.ErrorIs(t, err, apperrors.ErrStoreTransport)
	assert.NotErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestElasticListDocumentsScrolls(t *testing.T) {
	scrolls := 0
	s, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/idx/_search":
			w.Write([]byte(`{"_scroll_id":"s1","hits":{"hits":[{"_id":"a","_source":{"type":"Dataset"}},{"_id":"b","_source":{"type":"Model"}}]}}`))
			return true
		case r.Method == http.MethodPost && r.URL.Path == "/_search/scroll":
			scrolls++
			if scrolls == 1 {
				w.Write([]byte(`{"_scroll_id":"s1","hits":{"hits":[{"_id":"c","_source":{"type":"Dataset"}}]}}`))
			} else {
				w.Write([]byte(`{"_scroll_id":"s1","hits":{"hits":[]}}`))
			}
			return true
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/_search/scroll"):
			w.Write([]byte(`{"succeeded":true}`))
			return true
		}
		return false
	})

	listed, err := s.ListDocuments(context.Background(), "idx")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "a", listed[0].ID)
	assert.Equal(t, "Model", listed[1].Type)
	assert.Equal(t, "c", listed[2].ID)
	assert.Equal(t, 2, scrolls)
	assert.Contains(t, f.body("POST /idx/_search"), `"_source":["type"]`)
}

func TestElasticListDocumentsMissingIndex(t *testing.T) {
	s, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool { return false })
	_, err := s.ListDocuments(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestElasticBulkItemFailures(t *testing.T) {
	s, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/idx/_bulk" {
			w.Write([]byte(`{"errors":true,"items":[
				{"index":{"_id":"a","status":201}},
				{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}},
				{"delete":{"_id":"z","status":404,"result":"not_found"}}
			]}`))
			return true
		}
		return false
	})
	payload := bulk.Payload{Body: []byte("{\"index\":{\"_id\":\"a\"}}\n{}\n"), Operations: 1}
	err := s.Bulk(context.Background(), "idx", payload)
	var bulkErr *BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, map[string]string{"b": "mapper_parsing_exception: failed to parse"}, bulkErr.Failures)
	assert.Equal(t, string(payload.Body), f.body("POST /idx/_bulk"))
}

func TestElasticBulkSuccess(t *testing.T) {
	s, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		w.Write([]byte(`{"errors":false,"items":[{"index":{"_id":"a","status":201}}]}`))
		return true
	})
	assert.NoError(t, s.Bulk(context.Background(), "idx", bulk.Payload{Body: []byte("{}\n{}\n"), Operations: 1}))
}

func TestElasticResolveAlias(t *testing.T) {
	s, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/_alias/aliased":
			w.Write([]byte(`{"aliased_green":{"aliases":{"aliased":{}}}}`))
			return true
		case r.Method == http.MethodHead && r.URL.Path == "/legacy":
			return true
		}
		return false
	})
	ctx := context.Background()

	got, err := s.ResolveAlias(ctx, "aliased")
	require.NoError(t, err)
	assert.Equal(t, "aliased_green", got)

	got, err = s.ResolveAlias(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)

	got, err = s.ResolveAlias(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestElasticSwapAliasSingleRequest(t *testing.T) {
	s, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body string) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/_aliases" {
			w.Write([]byte(`{"acknowledged":true}`))
			return true
		}
		return false
	})
	ctx := context.Background()

	tests := []struct {
		previous string
		want     string
	}{
		{"", `{"actions":[{"add":{"index":"real_blue","alias":"real"}}]}`},
		{"real_green", `{"actions":[{"remove":{"index":"real_green","alias":"real"}},{"add":{"index":"real_blue","alias":"real"}}]}`},
		{"real", `{"actions":[{"remove_index":{"index":"real"}},{"add":{"index":"real_blue","alias":"real"}}]}`},
	}
	for _, tt := range tests {
		require.NoError(t, s.SwapAlias(ctx, "real", tt.previous, "real_blue"))
		var got, want any
		require.NoError(t, json.Unmarshal([]byte(f.body("POST /_aliases")), &got))
		require.NoError(t, json.Unmarshal([]byte(tt.want), &want))
		assert.Equal(t, want, got)
	}
}
