package translate

import "github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"

func projectModel() Model {
	return Model{
		Type:      model.Project,
		QueryIDs:  []string{"4f6c8c9e-6a3b-4b1e-9d2a-7c5f0e8a1b23"},
		Mapping:   mapping(map[string]any{"publications": map[string]any{"type": "text"}}),
		Translate: translateProject,
	}
}

func translateProject(src model.SourceEntity, stage model.DataStage, _ bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.Project)
	if err != nil {
		return nil, err
	}
	title, err := requireField(src, "title")
	if err != nil {
		return nil, err
	}
	body := doc.Body
	body["title"] = title
	setValue(body, "description", src.String("description"))
	setValues(body, "publications", src.Strings("publications"))
	if datasets := src.Objects("datasets"); len(datasets) > 0 {
		body["dataset"] = internalRefs(datasets, "title")
	}
	if stage == model.StageInProgress {
		setValue(body, "editorId", src.String("editorId"))
	}
	return doc, nil
}
