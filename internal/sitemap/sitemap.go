// Package sitemap builds the portal sitemap from the RELEASED indexes and
// keeps it cached, refreshing it whenever an indexing run reports that the
// RELEASED indexes changed.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/naming"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URL is one sitemap entry.
type URL struct {
	Loc string `xml:"loc"`
}

// URLSet is the sitemap document.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// Lister lists the documents of an index.
type Lister interface {
	ListDocuments(ctx context.Context, name string) ([]store.Document, error)
}

// Builder lists every RELEASED content type index and turns each document
// into an instance URL.
type Builder struct {
	lister  Lister
	types   []model.ContentType
	baseURL string
}

func NewBuilder(lister Lister, types []model.ContentType, baseURL string) *Builder {
	return &Builder{lister: lister, types: types, baseURL: baseURL}
}

// Build returns the sitemap. Content types without an index yet are skipped.
func (b *Builder) Build(ctx context.Context) (*URLSet, error) {
	log := logger.FromContext(ctx).With("component", "sitemap-builder")
	set := &URLSet{Xmlns: xmlns}
	for _, ct := range b.types {
		index := naming.IndexName(model.StageReleased, ct)
		docs, err := b.lister.ListDocuments(ctx, index)
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			log.Warn("released index missing, skipped", "index", index)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", index, err)
		}
		for _, d := range docs {
			set.URLs = append(set.URLs, URL{Loc: fmt.Sprintf("%s/instances/%s/%s", b.baseURL, ct, d.ID)})
		}
	}
	return set, nil
}

// Encode renders set as an XML document.
func Encode(set *URLSet) ([]byte, error) {
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
