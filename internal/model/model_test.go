package model

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataStage(t *testing.T) {
	tests := []struct {
		in      string
		want    DataStage
		wantErr bool
	}{
		{"RELEASED", StageReleased, false},
		{"released", StageReleased, false},
		{" In_Progress ", StageInProgress, false},
		{"DRAFT", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataStage(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexPrefix(t *testing.T) {
	assert.Equal(t, "publicly_released", StageReleased.IndexPrefix())
	assert.Equal(t, "in_progress", StageInProgress.IndexPrefix())
}

func TestTargetDocumentMarshalMergesHeader(t *testing.T) {
	doc := TargetDocument{
		ID:         "abc",
		Identifier: []string{"abc", "legacy-1"},
		Type:       Dataset,
		Body:       map[string]any{"title": "Mouse atlas", "id": "ignored"},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","identifier":["abc","legacy-1"],"type":"Dataset","title":"Mouse atlas"}`, string(raw))
	assert.Equal(t, "ignored", doc.Body["id"], "body must not be mutated")
}

func TestTargetDocumentValidate(t *testing.T) {
	assert.NoError(t, (&TargetDocument{ID: "a", Identifier: []string{"a"}}).Validate())
	assert.Error(t, (&TargetDocument{Identifier: []string{"a"}}).Validate())
	assert.Error(t, (&TargetDocument{ID: "a"}).Validate())
	assert.Error(t, (&TargetDocument{ID: "a", Identifier: []string{""}}).Validate())
	assert.NoError(t, (&TargetDocument{ID: "a", Identifier: []string{"a", "Dataset/b"}}).Validate())
	err := (&TargetDocument{ID: "a", Identifier: []string{"b", "a"}}).Validate()
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestIdentifierDocument(t *testing.T) {
	doc := TargetDocument{ID: "x", Identifier: []string{"canon", "alt"}, Type: Software, Body: map[string]any{"title": "t"}}
	id := doc.IdentifierDocument()
	assert.Equal(t, "canon", id.ID)
	assert.Equal(t, []string{"canon", "alt"}, id.Identifier)
	assert.Equal(t, Software, id.Type)
	assert.Nil(t, id.Body)
}

func TestSourceEntityUnmarshal(t *testing.T) {
	var e SourceEntity
	err := json.Unmarshal([]byte(`{"id":"https://kg.example.org/api/instances/1234","title":"x","keyword":["a","",1,"b"]}`), &e)
	require.NoError(t, err)
	assert.Equal(t, "1234", e.ID)
	assert.Equal(t, "x", e.String("title"))
	assert.Equal(t, []string{"a", "b"}, e.Strings("keyword"))
	assert.Empty(t, e.String("missing"))
}

func TestSourceEntityObjects(t *testing.T) {
	var e SourceEntity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p","author":[{"id":"a/1","fullName":"Ada"},"junk"]}`), &e))
	authors := e.Objects("author")
	require.Len(t, authors, 1)
	assert.Equal(t, "1", authors[0].ID)
	assert.Equal(t, "Ada", authors[0].String("fullName"))
}

func TestTranslationErrorUnwrapsSentinel(t *testing.T) {
	err := error(NewTranslationError("e2", "missing %s", "title"))
	assert.True(t, errors.Is(err, apperrors.ErrTranslation))
	var te *TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "e2", te.SourceID)
	assert.Equal(t, "translating e2: missing title", err.Error())
}
