// Package naming derives index names from their coordinates. Every name is a
// pure function of (stage, content type) or (stage) for the identifiers
// index.
package naming

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

// Physical slots backing an alias.
const (
	SlotBlue  = "blue"
	SlotGreen = "green"
)

// IndexName returns the alias readers query for a content type.
func IndexName(stage model.DataStage, contentType model.ContentType) string {
	return stage.IndexPrefix() + "_searchable_" + strings.ToLower(string(contentType))
}

// IdentifiersIndexName returns the alias of the stage's identifiers index.
func IdentifiersIndexName(stage model.DataStage) string {
	return stage.IndexPrefix() + "_identifiers"
}

// SlotName returns the physical index of alias in the given slot.
func SlotName(alias, slot string) string {
	return alias + "_" + slot
}

// TempSlot returns the physical index a rebuild of alias writes into: the
// slot alias does not point to, blue when it points nowhere.
func TempSlot(alias, current string) string {
	if current == SlotName(alias, SlotBlue) {
		return SlotName(alias, SlotGreen)
	}
	return SlotName(alias, SlotBlue)
}
