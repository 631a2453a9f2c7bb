// Package translate maps metadata source entities to search documents. Each
// content type is registered with the query ids that fetch its entities, the
// mapping of its index and a pure translation function.
package translate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// Func translates one source entity. liveMode selects the live file
// endpoints instead of the published ones. A failure for this entity only is
// reported as a *model.TranslationError.
type Func func(src model.SourceEntity, stage model.DataStage, liveMode bool) (*model.TargetDocument, error)

// Model describes one indexed content type.
type Model struct {
	Type        model.ContentType
	QueryIDs    []string
	Mapping     model.Mapping
	Translate   Func
	AutoRelease bool
}

// Registry holds the registered content types.
type Registry struct {
	models map[model.ContentType]Model
}

// NewRegistry creates a registry from models.
func NewRegistry(models ...Model) *Registry {
	r := &Registry{models: make(map[model.ContentType]Model, len(models))}
	for _, m := range models {
		r.models[m.Type] = m
	}
	return r
}

// Default returns the registry of every content type the portal indexes.
func Default() *Registry {
	return NewRegistry(
		datasetModel(),
		softwareModel(),
		modelVersionModel(),
		projectModel(),
		contributorModel(),
		fileModel(),
	)
}

// Get returns the model registered for contentType.
func (r *Registry) Get(contentType model.ContentType) (Model, error) {
	m, ok := r.models[contentType]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownContentType, contentType)
	}
	return m, nil
}

// Lookup resolves a content type name as it appears in a request path.
func (r *Registry) Lookup(name string) (Model, error) {
	for ct, m := range r.models {
		if string(ct) == name {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownContentType, name)
}

// Models returns the content types that are not auto-released, sorted by
// name.
func (r *Registry) Models() []Model {
	return r.filter(func(m Model) bool { return !m.AutoRelease })
}

// AutoRelease returns the auto-released content types, sorted by name.
func (r *Registry) AutoRelease() []Model {
	return r.filter(func(m Model) bool { return m.AutoRelease })
}

// All returns every registered content type, sorted by name.
func (r *Registry) All() []Model {
	return r.filter(func(Model) bool { return true })
}

func (r *Registry) filter(keep func(Model) bool) []Model {
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// TranslateAll translates entities with m. Documents that translate are
// returned in input order; every failure is returned alongside, keyed to its
// entity id, or to the content type and list position when the entity has
// none. Entities translating to nil are skipped.
func TranslateAll(m Model, entities []model.SourceEntity, stage model.DataStage, liveMode bool) ([]model.TargetDocument, []error) {
	docs := make([]model.TargetDocument, 0, len(entities))
	var errs []error
	for i, src := range entities {
		key := sourceKey(m.Type, src, i)
		doc, err := m.Translate(src, stage, liveMode)
		if err != nil {
			var te *model.TranslationError
			if !errors.As(err, &te) {
				err = model.NewTranslationError(key, "%v", err)
			} else if te.SourceID == "" {
				te.SourceID = key
			}
			errs = append(errs, err)
			continue
		}
		if doc == nil {
			continue
		}
		if doc.Type == "" {
			doc.Type = m.Type
		}
		if err := doc.Validate(); err != nil {
			errs = append(errs, model.NewTranslationError(key, "%v", err))
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, errs
}

// sourceKey names src in error reports.
func sourceKey(ct model.ContentType, src model.SourceEntity, pos int) string {
	if src.ID != "" {
		return src.ID
	}
	return fmt.Sprintf("%s#%d", ct, pos)
}
