package translate

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

// newDocument starts a document for src. Its canonical identifier is the
// entity id, followed by the type-prefixed identifiers the source lists.
func newDocument(src model.SourceEntity, contentType model.ContentType) (*model.TargetDocument, error) {
	if src.ID == "" {
		return nil, model.NewTranslationError("", "%s entity without id", contentType)
	}
	identifiers := []string{src.ID}
	seen := map[string]struct{}{src.ID: {}}
	for _, id := range src.Strings("identifier") {
		prefixed := string(contentType) + "/" + model.UUID(id)
		if _, ok := seen[prefixed]; ok {
			continue
		}
		seen[prefixed] = struct{}{}
		identifiers = append(identifiers, prefixed)
	}
	return &model.TargetDocument{
		ID:         src.ID,
		Identifier: identifiers,
		Type:       contentType,
		Body:       map[string]any{"category": string(contentType)},
	}, nil
}

// setValue stores a trimmed non-blank string under key.
func setValue(body map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		body[key] = v
	}
}

// setValues stores a non-empty list under key.
func setValues(body map[string]any, key string, values []string) {
	if len(values) > 0 {
		body[key] = values
	}
}

// references renders external links whose label defaults to the url.
func references(urls []string) []map[string]string {
	out := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]string{"url": u, "value": u})
	}
	return out
}

// internalRefs renders links to other indexed instances.
func internalRefs(objs []model.SourceEntity, labelKey string) []map[string]string {
	out := make([]map[string]string, 0, len(objs))
	for _, o := range objs {
		if o.ID == "" {
			continue
		}
		out = append(out, map[string]string{"reference": o.ID, "value": o.String(labelKey)})
	}
	return out
}

// firstRelease prefers the explicit release date over the first publication.
func firstRelease(src model.SourceEntity) string {
	if d := src.String("releaseDate"); d != "" {
		return d
	}
	return src.String("firstReleasedAt")
}

func requireField(src model.SourceEntity, key string) (string, error) {
	v := strings.TrimSpace(src.String(key))
	if v == "" {
		return "", model.NewTranslationError(src.ID, "missing %s", key)
	}
	return v, nil
}

// keywordField and textField are the mapping property shapes shared by all
// content types.
var (
	keywordField = map[string]any{"type": "keyword"}
	textField    = map[string]any{"type": "text", "fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}}}
	dateField    = map[string]any{"type": "date", "ignore_malformed": true}
)

// mapping builds an index body with the common properties plus extra.
func mapping(extra map[string]any) model.Mapping {
	props := map[string]any{
		"id":           keywordField,
		"identifier":   keywordField,
		"type":         keywordField,
		"category":     keywordField,
		"title":        textField,
		"description":  map[string]any{"type": "text"},
		"firstRelease": dateField,
		"lastRelease":  dateField,
	}
	for k, v := range extra {
		props[k] = v
	}
	return model.Mapping{
		"settings": map[string]any{"number_of_shards": 1},
		"mappings": map[string]any{"dynamic": false, "properties": props},
	}
}

// IdentifiersMapping is the mapping of the identifiers index of each stage.
func IdentifiersMapping() model.Mapping {
	return model.Mapping{
		"settings": map[string]any{"number_of_shards": 1},
		"mappings": map[string]any{
			"dynamic": false,
			"properties": map[string]any{
				"id":         keywordField,
				"identifier": keywordField,
				"type":       keywordField,
			},
		},
	}
}
