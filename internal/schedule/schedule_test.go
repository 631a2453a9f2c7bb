package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/report"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingRunner) record(name string, stage model.DataStage) (report.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+":"+string(stage))
	return report.Report{}, r.err
}

func (r *recordingRunner) RunFullReplacement(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return r.record("full", stage)
}

func (r *recordingRunner) RunIncrementalUpdate(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return r.record("incremental", stage)
}

func (r *recordingRunner) RunIncrementalUpdateAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error) {
	return r.record("autorelease", stage)
}

func (r *recordingRunner) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestJobsSkipsEmptyExpressions(t *testing.T) {
	r := &recordingRunner{}
	jobs := Jobs(config.ScheduleConfig{
		FullReplacementReleased: "0 0 2 * * *",
		AutoReleaseIncremental:  "0 */5 * * * *",
	}, r)
	require.Len(t, jobs, 2)
	assert.Equal(t, "full-released", jobs[0].Name)
	assert.Equal(t, "autorelease-incremental", jobs[1].Name)

	_, err := jobs[1].Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"autorelease:RELEASED"}, r.snapshot())
}

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New([]Job{{Name: "bad", Spec: "every tuesday"}})
	assert.Error(t, err)
}

func TestSchedulerTriggersJobs(t *testing.T) {
	r := &recordingRunner{}
	s, err := New(Jobs(config.ScheduleConfig{IncrementalInProgress: "* * * * * *"}, r))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	s.Start()
	require.Eventually(t, func() bool { return len(r.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "incremental:IN_PROGRESS", r.snapshot()[0])
}

func TestWrappedJobToleratesConflicts(t *testing.T) {
	r := &recordingRunner{err: apperrors.ErrRunInProgress}
	s, err := New(nil)
	require.NoError(t, err)
	jobs := Jobs(config.ScheduleConfig{FullReplacementInProgress: "@daily"}, r)
	require.Len(t, jobs, 1)

	s.wrap(jobs[0])()
	assert.Equal(t, []string{"full:IN_PROGRESS"}, r.snapshot())
	require.NoError(t, s.Stop(context.Background()))
}
