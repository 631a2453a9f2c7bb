package sitemap

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

// Handler serves GET /sitemap.xml.
type Handler struct {
	cache *Cache
}

func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := h.cache.Get(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("sitemap unavailable", "error", err)
		http.Error(w, "sitemap unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
