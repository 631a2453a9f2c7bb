// Package schedule triggers indexing runs on cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/report"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

// Runner is the part of the engine the scheduler drives.
type Runner interface {
	RunFullReplacement(ctx context.Context, stage model.DataStage) (report.Report, error)
	RunIncrementalUpdate(ctx context.Context, stage model.DataStage) (report.Report, error)
	RunIncrementalUpdateAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error)
}

// Job is one scheduled run.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (report.Report, error)
}

// Jobs derives the jobs configured in cfg. Jobs with an empty expression are
// left out.
func Jobs(cfg config.ScheduleConfig, r Runner) []Job {
	all := []Job{
		{"full-released", cfg.FullReplacementReleased, func(ctx context.Context) (report.Report, error) {
			return r.RunFullReplacement(ctx, model.StageReleased)
		}},
		{"full-in-progress", cfg.FullReplacementInProgress, func(ctx context.Context) (report.Report, error) {
			return r.RunFullReplacement(ctx, model.StageInProgress)
		}},
		{"incremental-released", cfg.IncrementalReleased, func(ctx context.Context) (report.Report, error) {
			return r.RunIncrementalUpdate(ctx, model.StageReleased)
		}},
		{"incremental-in-progress", cfg.IncrementalInProgress, func(ctx context.Context) (report.Report, error) {
			return r.RunIncrementalUpdate(ctx, model.StageInProgress)
		}},
		{"autorelease-incremental", cfg.AutoReleaseIncremental, func(ctx context.Context) (report.Report, error) {
			return r.RunIncrementalUpdateAutoRelease(ctx, model.StageReleased)
		}},
	}
	jobs := all[:0]
	for _, j := range all {
		if j.Spec != "" {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Scheduler runs jobs on a cron with a seconds field, in UTC.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers jobs. An invalid expression fails the whole call.
func New(jobs []Job) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		logger: slog.Default().With("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.Spec, s.wrap(j)); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduling %s (%q): %w", j.Name, j.Spec, err)
		}
		s.logger.Info("job scheduled", "job", j.Name, "spec", j.Spec)
	}
	return s, nil
}

func (s *Scheduler) wrap(j Job) func() {
	return func() {
		ctx := logger.WithRequestID(s.ctx, "cron-"+uuid.NewString())
		log := logger.FromContext(ctx).With("component", "scheduler", "job", j.Name)
		started := time.Now()
		rep, err := j.Run(ctx)
		switch {
		case errors.Is(err, apperrors.ErrRunInProgress):
			log.Info("job skipped, run already in progress")
		case err != nil:
			log.Error("job failed", "error", err)
		case !rep.Successful():
			log.Warn("job finished with errors", "errors", rep.ErrorCount(), "duration", time.Since(started))
		default:
			log.Info("job finished", "duration", time.Since(started))
		}
	}
}

// Start begins triggering jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops triggering new jobs, cancels running ones and waits for them
// until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
