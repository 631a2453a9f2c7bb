// Package source queries the metadata source (the knowledge graph) for the
// instances of a stored query, page by page.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/resilience"
)

// ResultPage is one page of query results.
type ResultPage struct {
	Data  []model.SourceEntity `json:"data"`
	Total int                  `json:"total"`
	From  int                  `json:"from"`
	Size  int                  `json:"size"`
}

// StatusError is an unexpected HTTP status from the metadata source.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metadata source answered %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether the status is worth another attempt.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is the metadata source HTTP client. It retries failed page fetches
// with exponential backoff behind a circuit breaker.
type Client struct {
	endpoint   string
	token      string
	pageSize   int
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// NewClient creates a client for cfg.
func NewClient(cfg config.SourceConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.RequestTimeout})
}

// NewClientWithHTTP creates a client using httpClient for transport.
func NewClientWithHTTP(cfg config.SourceConfig, httpClient *http.Client) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		pageSize:   pageSize,
		httpClient: httpClient,
		breaker: resilience.NewCircuitBreaker("metadata-source", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure:        isTransient,
		}),
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     15 * time.Second,
			Retryable:    isTransient,
		},
	}
}

// isTransient separates outages from requests that would fail again.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// FetchPage returns the page of queryID results starting at from.
func (c *Client) FetchPage(ctx context.Context, queryID string, stage model.DataStage, from, size int) (*ResultPage, error) {
	var page *ResultPage
	err := resilience.Retry(ctx, "fetch "+queryID, c.retry, func() error {
		return c.breaker.Execute(func() error {
			p, err := c.doFetch(ctx, queryID, stage, from, size)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query %s from %d: %w", apperrors.ErrUpstreamQuery, queryID, from, err)
	}
	return page, nil
}

func (c *Client) doFetch(ctx context.Context, queryID string, stage model.DataStage, from, size int) (*ResultPage, error) {
	q := url.Values{}
	q.Set("stage", string(stage))
	q.Set("from", strconv.Itoa(from))
	q.Set("size", strconv.Itoa(size))
	u := fmt.Sprintf("%s/queries/%s/instances?%s", c.endpoint, url.PathEscape(queryID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var page ResultPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	return &page, nil
}

// FetchAll pages through every result of queryID.
func (c *Client) FetchAll(ctx context.Context, queryID string, stage model.DataStage) ([]model.SourceEntity, error) {
	log := logger.FromContext(ctx).With("component", "source-client", "query_id", queryID, "stage", stage)
	var all []model.SourceEntity
	from := 0
	for {
		page, err := c.FetchPage(ctx, queryID, stage, from, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		from += len(page.Data)
		log.Debug("fetched page", "from", page.From, "count", len(page.Data), "total", page.Total)
		if len(page.Data) == 0 || from >= page.Total {
			break
		}
	}
	log.Info("query fetched", "count", len(all))
	return all, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}
