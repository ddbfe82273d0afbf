package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
)

// ReconcileFunc reconciles every parent of one module and returns how many drifted.
type ReconcileFunc func(ctx context.Context, repair bool) (int, error)

// ReconcileTotalsJob runs total reconciliation for customer orders and supplier purchases.
type ReconcileTotalsJob struct {
	Modules map[string]ReconcileFunc
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileTotalsJob initialises the reconciliation handler.
func NewReconcileTotalsJob(modules map[string]ReconcileFunc, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileTotalsJob {
	return &ReconcileTotalsJob{Modules: modules, Logger: logger, Metrics: metrics}
}

// Handle executes reconciliation for every registered module. A failing module does not
// stop the others. Every module error is joined into the result so asynq retries the task.
func (j *ReconcileTotalsJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || len(j.Modules) == 0 {
		return errors.New("reconcile totals: handler not configured")
	}
	var payload ReconcileTotalsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskReconcileTotals)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Bool("repair", payload.Repair))
	logger.Info("starting total reconciliation")

	var errs []error
	total := 0
	for module, reconcile := range j.Modules {
		drifted, err := reconcile(ctx, payload.Repair)
		if err != nil {
			logger.Error("reconcile failed", slog.String("module", module), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", module, err))
			continue
		}
		if drifted > 0 {
			logger.Warn("total drift detected", slog.String("module", module), slog.Int("parents", drifted))
		}
		j.Metrics.AddDrift(module, drifted)
		total += drifted
	}

	logger.Info("completed total reconciliation",
		slog.Int("drifted", total),
		slog.Duration("duration", time.Since(start)),
	)
	return errors.Join(errs...)
}

func (j *ReconcileTotalsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
