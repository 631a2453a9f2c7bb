package translate

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

func softwareModel() Model {
	return Model{
		Type:     model.Software,
		QueryIDs: []string{"5e4e7a0b-1ab6-4bb8-a1b8-6e36c1a3e5d4"},
		Mapping: mapping(map[string]any{
			"version":         keywordField,
			"appCategory":     keywordField,
			"operatingSystem": keywordField,
			"license":         keywordField,
		}),
		Translate: translateSoftware,
	}
}

func translateSoftware(src model.SourceEntity, stage model.DataStage, _ bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.Software)
	if err != nil {
		return nil, err
	}
	title, err := requireField(src, "title")
	if err != nil {
		return nil, err
	}
	versions := src.Objects("versions")
	if len(versions) == 0 {
		return nil, model.NewTranslationError(src.ID, "software without versions")
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].String("version") > versions[j].String("version")
	})
	latest := versions[0]

	body := doc.Body
	setValue(body, "title", title)
	description := src.String("description")
	if extra := latest.String("description"); extra != "" {
		description += "\n\n" + extra
	}
	setValue(body, "description", description)
	setValue(body, "version", latest.String("version"))
	setValues(body, "appCategory", latest.Strings("applicationCategory"))
	setValues(body, "features", latest.Strings("features"))
	setValues(body, "license", latest.Strings("license"))
	setValues(body, "operatingSystem", latest.Strings("operatingSystem"))
	if urls := latest.Strings("sourceCode"); len(urls) > 0 {
		body["sourceCode"] = references(urls)
	}
	if urls := latest.Strings("documentation"); len(urls) > 0 {
		body["documentation"] = references(urls)
	}
	if urls := latest.Strings("homepage"); len(urls) > 0 {
		body["homepage"] = references(urls)
	}
	setValue(body, "firstRelease", firstRelease(src))
	setValue(body, "lastRelease", src.String("lastReleasedAt"))
	if stage == model.StageInProgress {
		setValue(body, "editorId", src.String("editorId"))
	}
	return doc, nil
}
