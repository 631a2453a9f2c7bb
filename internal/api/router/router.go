// Package router wires the indexing API routes and applies the middleware
// chain (RequestID → Metrics → Auth).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/middleware"
)

const readTimeout = 10 * time.Second

// New builds the indexing API handler.
//
// Route table:
//
//	POST   /indexing?databaseScope=                         full replacement
//	POST   /indexing/categories/{category}?databaseScope=   full replacement of one type
//	POST   /indexing/autorelease?databaseScope=             full replacement of auto-released types
//	PUT    /indexing?databaseScope=                         incremental update
//	PUT    /indexing/categories/{category}?databaseScope=   incremental update of one type
//	PUT    /indexing/autorelease?databaseScope=             incremental update of auto-released types
//	GET    /indexing/runs                                   recent runs
//	GET    /health/live, /health/ready                      health
//	GET    /metrics                                         Prometheus scrape (when m is set)
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Auth → handler
func New(h *handler.Handler, checker *health.Checker, keys *apimw.KeySet, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /indexing", h.FullReplacement)
	mux.HandleFunc("POST /indexing/categories/{category}", h.FullReplacementByType)
	mux.HandleFunc("POST /indexing/autorelease", h.FullReplacementAutoRelease)
	mux.HandleFunc("PUT /indexing", h.IncrementalUpdate)
	mux.HandleFunc("PUT /indexing/categories/{category}", h.IncrementalUpdateByType)
	mux.HandleFunc("PUT /indexing/autorelease", h.IncrementalUpdateAutoRelease)
	mux.Handle("GET /indexing/runs", pkgmw.Timeout(readTimeout)(http.HandlerFunc(h.ListRuns)))
	if m != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = apimw.Auth(keys)(chain)
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.RequestID(chain)
	return chain
}
