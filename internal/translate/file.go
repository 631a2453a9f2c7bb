package translate

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

func fileModel() Model {
	return Model{
		Type:     model.File,
		QueryIDs: []string{"d0a2f4c3-81e9-4c55-a3b0-6f1e2a7d9c84"},
		Mapping: mapping(map[string]any{
			"format":         keywordField,
			"size":           map[string]any{"type": "long"},
			"fileRepository": keywordField,
		}),
		Translate: translateFile,
	}
}

func translateFile(src model.SourceEntity, stage model.DataStage, _ bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.File)
	if err != nil {
		return nil, err
	}
	iri, err := requireField(src, "iri")
	if err != nil {
		return nil, err
	}
	body := doc.Body
	setValue(body, "title", src.String("name"))
	if _, ok := body["title"]; !ok {
		body["title"] = model.UUID(iri)
	}
	body["url"] = iri
	setValue(body, "format", src.String("format"))
	switch size := src.Fields["size"].(type) {
	case float64:
		body["size"] = int64(size)
	case string:
		setValue(body, "size", size)
	}
	if repos := src.Objects("fileRepository"); len(repos) > 0 && repos[0].ID != "" {
		body["fileRepository"] = repos[0].ID
		if stage == model.StageInProgress {
			body["fileRepositoryUrl"] = fmt.Sprintf("/api/groups/curated/repositories/%s/files", repos[0].ID)
		}
	}
	return doc, nil
}
