package translate

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

const (
	accessibilityFree       = "free access"
	accessibilityEmbargo    = "under embargo"
	accessibilityControlled = "controlled access"
	accessibilityRestricted = "restricted access"

	embargoMessage    = "This dataset is temporarily under embargo. The data will become available for download after the embargo period."
	restrictedMessage = "This dataset is only accessible to authorized users."
)

func datasetModel() Model {
	return Model{
		Type:     model.Dataset,
		QueryIDs: []string{"e09b4984-5272-431e-8d3b-7d498328d8ee"},
		Mapping: mapping(map[string]any{
			"version":           keywordField,
			"dataAccessibility": keywordField,
			"modalityForFilter": keywordField,
			"methodsForFilter":  keywordField,
			"searchable":        map[string]any{"type": "boolean"},
		}),
		Translate: translateDataset,
	}
}

func translateDataset(src model.SourceEntity, stage model.DataStage, liveMode bool) (*model.TargetDocument, error) {
	doc, err := newDocument(src, model.Dataset)
	if err != nil {
		return nil, err
	}
	name, err := requireField(src, "fullName")
	if err != nil {
		return nil, err
	}
	body := doc.Body
	version := src.String("version")

	var parent *model.SourceEntity
	if objs := src.Objects("dataset"); len(objs) > 0 {
		parent = &objs[0]
	}
	multipleVersions := parent != nil && len(parent.Objects("versions")) > 1
	if multipleVersions || version == "" {
		setValue(body, "title", name)
	} else {
		setValue(body, "title", fmt.Sprintf("%s (%s)", name, version))
	}
	if multipleVersions {
		setValue(body, "version", version)
		body["versions"] = internalRefs(parent.Objects("versions"), "versionIdentifier")
	}
	body["searchable"] = true

	setValue(body, "description", src.String("description"))
	if _, ok := body["description"]; !ok && parent != nil {
		setValue(body, "description", parent.String("description"))
	}
	setValue(body, "firstRelease", firstRelease(src))
	setValue(body, "lastRelease", src.String("lastReleasedAt"))
	setValues(body, "modalityForFilter", src.Strings("experimentalApproach"))
	setValues(body, "methodsForFilter", src.Strings("technique"))
	if stage == model.StageInProgress {
		setValue(body, "editorId", src.String("editorId"))
	}
	applyAccessibility(body, src, stage, liveMode)
	return doc, nil
}

// applyAccessibility sets the embargo notice or the file links of a dataset
// or model version.
func applyAccessibility(body map[string]any, src model.SourceEntity, stage model.DataStage, liveMode bool) {
	accessibility := ""
	if objs := src.Objects("accessibility"); len(objs) > 0 {
		accessibility = objs[0].String("name")
	}
	if accessibility == "" {
		return
	}
	setValue(body, "dataAccessibility", accessibility)

	var repo *model.SourceEntity
	if objs := src.Objects("fileRepository"); len(objs) > 0 {
		repo = &objs[0]
	}
	switch strings.ToLower(accessibility) {
	case accessibilityControlled, accessibilityRestricted:
		body["embargo"] = restrictedMessage
	case accessibilityEmbargo:
		if stage == model.StageInProgress && repo != nil && repo.String("iri") != "" {
			body["embargoRestrictedAccess"] = fmt.Sprintf("This dataset is under embargo. Its files are in %s.", repo.String("iri"))
		} else {
			body["embargo"] = embargoMessage
		}
	default:
		if repo == nil {
			return
		}
		iri := repo.String("iri")
		switch {
		case isExternalRepository(iri):
			body["externalDatalink"] = references([]string{iri})
		case repo.Fields["firstFile"] == nil:
			body["dataProxyLink"] = map[string]string{
				"url":   "https://data-proxy.ebrains.eu/datasets/" + src.ID,
				"value": "Browse files",
			}
		default:
			body["filesAsyncUrl"] = FilesEndpoint(repo.ID, stage, liveMode)
		}
	}
}

// FilesEndpoint returns the path listing the files of a repository.
func FilesEndpoint(repositoryID string, stage model.DataStage, liveMode bool) string {
	if liveMode {
		return fmt.Sprintf("/api/repositories/%s/files/live", repositoryID)
	}
	group := "public"
	if stage == model.StageInProgress {
		group = "curated"
	}
	return fmt.Sprintf("/api/groups/%s/repositories/%s/files", group, repositoryID)
}

func isExternalRepository(iri string) bool {
	return iri != "" && !strings.Contains(iri, "object.cscs.ch") && !strings.Contains(iri, "data-proxy.ebrains.eu")
}
