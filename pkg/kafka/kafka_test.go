package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runEvent struct {
	Stage string `json:"stage"`
	RunID string `json:"runId"`
}

func TestEncodeDecodeEvent(t *testing.T) {
	raw, err := EncodeJSON(runEvent{Stage: "RELEASED", RunID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"RELEASED","runId":"r1"}`, string(raw))

	got, err := DecodeJSON[runEvent](raw)
	require.NoError(t, err)
	assert.Equal(t, "RELEASED", got.Stage)
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeJSON[runEvent]([]byte("{not json"))
	assert.Error(t, err)
}

func TestEncodeJSONRejectsUnsupported(t *testing.T) {
	_, err := EncodeJSON(make(chan int))
	assert.Error(t, err)
}
