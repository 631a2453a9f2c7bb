// Package model holds the types shared by the synchronization engine and its
// collaborators: data stages, content types, source entities and the
// documents written to the search indexes.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// DataStage selects which upstream data is queried and which index namespace
// is written.
type DataStage string

const (
	StageInProgress DataStage = "IN_PROGRESS"
	StageReleased   DataStage = "RELEASED"
)

// ParseDataStage accepts IN_PROGRESS and RELEASED, case-insensitively.
func ParseDataStage(s string) (DataStage, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StageInProgress):
		return StageInProgress, nil
	case string(StageReleased):
		return StageReleased, nil
	default:
		return "", fmt.Errorf("%w: unknown data stage %q", apperrors.ErrInvalidInput, s)
	}
}

// IndexPrefix returns the index namespace of the stage.
func (s DataStage) IndexPrefix() string {
	if s == StageReleased {
		return "publicly_released"
	}
	return "in_progress"
}

func (s DataStage) String() string {
	return string(s)
}

// ContentType names one category of indexed entity.
type ContentType string

const (
	Dataset     ContentType = "Dataset"
	Software    ContentType = "Software"
	Model       ContentType = "Model"
	Project     ContentType = "Project"
	Contributor ContentType = "Contributor"
	File        ContentType = "File"
)

// IdentifiersTarget labels the shared identifiers index in error reports.
const IdentifiersTarget ContentType = "identifiers"

func (t ContentType) String() string {
	return string(t)
}

// Mapping is the body sent when an index is created: settings and mappings.
type Mapping map[string]any

// TargetDocument is one document written to a search index. Identifier[0]
// is the canonical identifier used for existence comparisons.
type TargetDocument struct {
	ID         string
	Identifier []string
	Type       ContentType
	Body       map[string]any
}

// CanonicalIdentifier returns Identifier[0], or "" for an invalid document.
func (d *TargetDocument) CanonicalIdentifier() string {
	if len(d.Identifier) == 0 {
		return ""
	}
	return d.Identifier[0]
}

// Validate checks the invariants every indexed document must hold.
func (d *TargetDocument) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: document without id", apperrors.ErrInvalidInput)
	}
	if len(d.Identifier) == 0 || d.Identifier[0] == "" {
		return fmt.Errorf("%w: document %s has no identifier", apperrors.ErrInvalidInput, d.ID)
	}
	// Bulk writes key by ID while diffs compare canonical identifiers.
	if d.Identifier[0] != d.ID {
		return fmt.Errorf("%w: document %s has canonical identifier %s", apperrors.ErrInvalidInput, d.ID, d.Identifier[0])
	}
	return nil
}

// MarshalJSON renders the body with id, identifier and type merged in.
func (d TargetDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Body)+3)
	for k, v := range d.Body {
		out[k] = v
	}
	out["id"] = d.ID
	out["identifier"] = d.Identifier
	out["type"] = d.Type
	return json.Marshal(out)
}

// IdentifierDocument derives the identifiers index entry of d, keyed by its
// canonical identifier.
func (d *TargetDocument) IdentifierDocument() TargetDocument {
	return TargetDocument{
		ID:         d.CanonicalIdentifier(),
		Identifier: d.Identifier,
		Type:       d.Type,
	}
}
