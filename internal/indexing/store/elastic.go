package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticConfig tunes listing.
type ElasticConfig struct {
	ScrollSize int
	ScrollKeep time.Duration
}

// Elastic is the Elasticsearch-backed Store.
type Elastic struct {
	es     *elasticsearch.Client
	cfg    ElasticConfig
	logger *slog.Logger
}

// NewElastic wraps an Elasticsearch client.
func NewElastic(es *elasticsearch.Client, cfg ElasticConfig) *Elastic {
	if cfg.ScrollSize <= 0 {
		cfg.ScrollSize = 1000
	}
	if cfg.ScrollKeep <= 0 {
		cfg.ScrollKeep = time.Minute
	}
	return &Elastic{
		es:     es,
		cfg:    cfg,
		logger: slog.Default().With("component", "elastic-store"),
	}
}

type esErrorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// responseError converts a failed response into a wrapped sentinel error.
func responseError(res *esapi.Response, action, name string) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var parsed esErrorBody
	reason := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Reason != "" {
		reason = parsed.Error.Type + ": " + parsed.Error.Reason
	}
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s: %s", apperrors.ErrIndexNotFound, action, name, reason)
	}
	return fmt.Errorf("%w: %s %s: status %d: %s", apperrors.ErrStoreTransport, action, name, res.StatusCode, reason)
}

func transportError(err error, action, name string) error {
	return fmt.Errorf("%w: %s %s: %v", apperrors.ErrStoreTransport, action, name, err)
}

func (e *Elastic) CreateIndex(ctx context.Context, name string, mapping model.Mapping) error {
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping for %s: %w", name, err)
	}
	res, err := e.es.Indices.Create(name,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return transportError(err, "creating index", name)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, "creating index", name)
	}
	return nil
}

func (e *Elastic) DeleteIndex(ctx context.Context, name string) error {
	res, err := e.es.Indices.Delete([]string{name},
		e.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError(err, "deleting index", name)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, "deleting index", name)
	}
	return nil
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ListDocuments scrolls through the whole index, fetching only the type
// field of each document.
func (e *Elastic) ListDocuments(ctx context.Context, name string) ([]Document, error) {
	query := `{"query":{"match_all":{}},"_source":["type"],"sort":["_doc"]}`
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(name),
		e.es.Search.WithBody(strings.NewReader(query)),
		e.es.Search.WithSize(e.cfg.ScrollSize),
		e.es.Search.WithScroll(e.cfg.ScrollKeep),
	)
	if err != nil {
		return nil, transportError(err, "listing", name)
	}
	page, err := e.decodePage(res, name)
	if err != nil {
		return nil, err
	}

	var docs []Document
	scrollID := page.ScrollID
	defer func() {
		if scrollID != "" {
			e.clearScroll(scrollID)
		}
	}()
	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			var header struct {
				Type string `json:"type"`
			}
			json.Unmarshal(hit.Source, &header)
			docs = append(docs, Document{ID: hit.ID, Type: header.Type, Source: hit.Source})
		}
		if scrollID == "" {
			break
		}
		res, err := e.es.Scroll(
			e.es.Scroll.WithContext(ctx),
			e.es.Scroll.WithScrollID(scrollID),
			e.es.Scroll.WithScroll(e.cfg.ScrollKeep),
		)
		if err != nil {
			return nil, transportError(err, "scrolling", name)
		}
		page, err = e.decodePage(res, name)
		if err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	e.logger.Debug("listed documents", "index", name, "count", len(docs))
	return docs, nil
}

func (e *Elastic) decodePage(res *esapi.Response, name string) (*searchResponse, error) {
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, "listing", name)
	}
	var page searchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, transportError(err, "decoding listing of", name)
	}
	return &page, nil
}

func (e *Elastic) clearScroll(scrollID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.es.ClearScroll(
		e.es.ClearScroll.WithContext(ctx),
		e.es.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		e.logger.Warn("failed to clear scroll", "error", err)
		return
	}
	res.Body.Close()
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

func (e *Elastic) Bulk(ctx context.Context, name string, payload bulk.Payload) error {
	res, err := e.es.Bulk(bytes.NewReader(payload.Body),
		e.es.Bulk.WithContext(ctx),
		e.es.Bulk.WithIndex(name),
		e.es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return transportError(err, "bulk to", name)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, "bulk to", name)
	}
	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return transportError(err, "decoding bulk response of", name)
	}
	if !parsed.Errors {
		return nil
	}
	failures := make(map[string]string)
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				failures[result.ID] = result.Error.Type + ": " + result.Error.Reason
			}
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &BulkError{Index: name, Failures: failures}
}

func (e *Elastic) ResolveAlias(ctx context.Context, alias string) (string, error) {
	res, err := e.es.Indices.GetAlias(
		e.es.Indices.GetAlias.WithContext(ctx),
		e.es.Indices.GetAlias.WithName(alias),
	)
	if err != nil {
		return "", transportError(err, "resolving alias", alias)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return e.concreteIndex(ctx, alias)
	case res.IsError():
		return "", responseError(res, "resolving alias", alias)
	}
	var targets map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&targets); err != nil {
		return "", transportError(err, "decoding alias", alias)
	}
	if len(targets) != 1 {
		return "", fmt.Errorf("%w: alias %s points to %d indexes", apperrors.ErrStoreTransport, alias, len(targets))
	}
	for target := range targets {
		return target, nil
	}
	return "", nil
}

func (e *Elastic) concreteIndex(ctx context.Context, name string) (string, error) {
	res, err := e.es.Indices.Exists([]string{name},
		e.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return "", transportError(err, "checking index", name)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return name, nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", responseError(res, "checking index", name)
	}
}

func (e *Elastic) SwapAlias(ctx context.Context, alias, previous, next string) error {
	actions := make([]map[string]any, 0, 2)
	switch {
	case previous == alias:
		actions = append(actions, map[string]any{"remove_index": map[string]string{"index": alias}})
	case previous != "":
		actions = append(actions, map[string]any{"remove": map[string]string{"index": previous, "alias": alias}})
	}
	actions = append(actions, map[string]any{"add": map[string]string{"index": next, "alias": alias}})
	body, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return fmt.Errorf("encoding alias actions for %s: %w", alias, err)
	}
	res, err := e.es.Indices.UpdateAliases(bytes.NewReader(body),
		e.es.Indices.UpdateAliases.WithContext(ctx),
	)
	if err != nil {
		return transportError(err, "swapping alias", alias)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, "swapping alias", alias)
	}
	return nil
}
