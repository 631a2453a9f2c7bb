package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyReportMarshalsAsEmptyObject(t *testing.T) {
	r := NewAccumulator().Report()
	assert.True(t, r.Successful())
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(raw))
}

func TestReportShape(t *testing.T) {
	acc := NewAccumulator()
	acc.AddError(model.Software, model.NewTranslationError("s1", "no title"))
	acc.AddError(model.Dataset, model.NewTranslationError("d2", "no identifier"))
	acc.AddError(model.Dataset, fmt.Errorf("wrapped: %w", model.NewTranslationError("d1", "bad date")))
	acc.Fail(model.File, errors.New("store unreachable"))

	r := acc.Report()
	assert.False(t, r.Successful())
	assert.Equal(t, 4, r.ErrorCount())

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errorsByTarget":[
		{"targetType":"Dataset","errorsBySource":[{"sourceId":"d1","message":"bad date"},{"sourceId":"d2","message":"no identifier"}]},
		{"targetType":"File","errorsBySource":[{"sourceId":"*","message":"store unreachable"}]},
		{"targetType":"Software","errorsBySource":[{"sourceId":"s1","message":"no title"}]}
	]}`, string(raw))
}

func TestAddErrorWithoutTranslationErrorIsFatal(t *testing.T) {
	acc := NewAccumulator()
	acc.AddError(model.Model, errors.New("listing failed"))
	r := acc.Report()
	require.Len(t, r.ErrorsByTarget, 1)
	assert.Equal(t, FatalSourceID, r.ErrorsByTarget[0].ErrorsBySource[0].SourceID)
}

func TestMerge(t *testing.T) {
	run := NewAccumulator()
	perType := NewAccumulator()
	perType.Add(model.Dataset, "x", "boom")
	run.Merge(perType)
	run.Merge(NewAccumulator())

	assert.Equal(t, 1, run.Count(model.Dataset))
	assert.Equal(t, 0, run.Count(model.Software))
}

func TestAccumulatorConcurrentAdds(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc.Add(model.Dataset, fmt.Sprintf("id-%d", i), "err")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, acc.Count(model.Dataset))
}
