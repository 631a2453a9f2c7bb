package translate

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

// Contributors are published as soon as they are curated, so they are
// indexed by the auto-release runs.
func contributorModel() Model {
	return Model{
		Type:        model.Contributor,
		QueryIDs:    []string{"b31f015f-6592-4a6e-8a8e-2d4e5e6c0f7a"},
		Mapping:     mapping(map[string]any{"familyName": keywordField}),
		Translate:   translateContributor,
		AutoRelease: true,
	}
}

func translateContributor(src model.SourceEntity, _ model.DataStage, _ bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.Contributor)
	if err != nil {
		return nil, err
	}
	family := strings.TrimSpace(src.String("familyName"))
	given := strings.TrimSpace(src.String("givenName"))
	if family == "" && given == "" {
		return nil, model.NewTranslationError(src.ID, "contributor without name")
	}
	body := doc.Body
	body["title"] = strings.TrimSpace(strings.Join([]string{given, family}, " "))
	setValue(body, "familyName", family)
	if datasets := src.Objects("custodianOf"); len(datasets) > 0 {
		body["custodianOf"] = internalRefs(datasets, "fullName")
	}
	if models := src.Objects("developerOf"); len(models) > 0 {
		body["developerOf"] = internalRefs(models, "fullName")
	}
	return doc, nil
}
