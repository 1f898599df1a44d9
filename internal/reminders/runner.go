package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/observability/metrics"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// Job is one periodic task. Run returns how many items it handled.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Runner executes jobs on a fixed interval.
type Runner struct {
	jobs     []Job
	interval time.Duration
	metrics  *metrics.JobMetrics
	logger   *logging.Logger
}

func NewRunner(logger *logging.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{jobs: jobs, interval: 15 * time.Minute, logger: logger}
}

func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *Runner) WithMetrics(m *metrics.JobMetrics) *Runner {
	r.metrics = m
	return r
}

// Run executes every job immediately and then on each tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	_ = r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.RunOnce(ctx)
		}
	}
}

// RunOnce executes every job once. A failing job does not stop the others;
// their errors are joined.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range r.jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		started := time.Now()
		n, err := job.Run(ctx)
		r.metrics.ObserveRun(job.Name, n, err)
		if err != nil {
			r.logger.Error("job failed", "job", job.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}
		r.logger.Info("job finished", "job", job.Name, "items", n, "duration_ms", time.Since(started).Milliseconds())
	}
	return errors.Join(errs...)
}
