package naming

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestIndexName(t *testing.T) {
	assert.Equal(t, "publicly_released_searchable_dataset", IndexName(model.StageReleased, model.Dataset))
	assert.Equal(t, "in_progress_searchable_software", IndexName(model.StageInProgress, model.Software))
	assert.Equal(t, IndexName(model.StageReleased, model.File), IndexName(model.StageReleased, model.File))
}

func TestIdentifiersIndexName(t *testing.T) {
	assert.Equal(t, "publicly_released_identifiers", IdentifiersIndexName(model.StageReleased))
	assert.Equal(t, "in_progress_identifiers", IdentifiersIndexName(model.StageInProgress))
}

func TestTempSlotAlternates(t *testing.T) {
	alias := "in_progress_searchable_model"
	blue := SlotName(alias, SlotBlue)
	green := SlotName(alias, SlotGreen)

	assert.Equal(t, blue, TempSlot(alias, ""))
	assert.Equal(t, green, TempSlot(alias, blue))
	assert.Equal(t, blue, TempSlot(alias, green))
	assert.Equal(t, blue, TempSlot(alias, alias), "legacy concrete index")
}
