package translate

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

func modelVersionModel() Model {
	return Model{
		Type:     model.Model,
		QueryIDs: []string{"87858583-1462-4952-9e71-90b159a7a1ed"},
		Mapping: mapping(map[string]any{
			"version":           keywordField,
			"dataAccessibility": keywordField,
			"abstractionLevel":  keywordField,
			"modelScope":        keywordField,
		}),
		Translate: translateModelVersion,
	}
}

func translateModelVersion(src model.SourceEntity, stage model.DataStage, liveMode bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.Model)
	if err != nil {
		return nil, err
	}
	name, err := requireField(src, "fullName")
	if err != nil {
		return nil, err
	}
	body := doc.Body
	if version := src.String("version"); version != "" {
		body["title"] = fmt.Sprintf("%s (%s)", name, version)
		body["version"] = version
	} else {
		body["title"] = name
	}
	setValue(body, "description", src.String("description"))
	setValues(body, "abstractionLevel", src.Strings("abstractionLevel"))
	setValues(body, "modelScope", src.Strings("scope"))
	setValues(body, "studyTargets", src.Strings("studyTarget"))
	if devs := src.Objects("developer"); len(devs) > 0 {
		body["contributors"] = internalRefs(devs, "fullName")
	}
	setValue(body, "firstRelease", firstRelease(src))
	setValue(body, "lastRelease", src.String("lastReleasedAt"))
	applyAccessibility(body, src, stage, liveMode)
	return doc, nil
}
