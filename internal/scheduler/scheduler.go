// Package scheduler runs the periodic maintenance jobs of the API process.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler recomputes stored category balances and reports how many changed.
type Reconciler interface {
	RecalculateAll(ctx context.Context) (int, error)
}

const jobTimeout = 5 * time.Minute

// Start schedules balance reconciliation on spec (standard cron syntax or a
// descriptor such as "@every 6h") and starts the cron runner. Stop the
// returned cron to end it.
func Start(spec string, r Reconciler, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, ReconcileJob(r, log)); err != nil {
		return nil, err
	}
	c.Start()
	log.Info("balance reconciliation scheduled", zap.String("schedule", spec))
	return c, nil
}

// ReconcileJob is the cron body. Failures are logged; the next run retries.
func ReconcileJob(r Reconciler, log *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		changed, err := r.RecalculateAll(ctx)
		if err != nil {
			log.Error("balance reconciliation failed", zap.Error(err))
			return
		}
		log.Info("balance reconciliation finished",
			zap.Int("changed", changed),
			zap.Duration("took", time.Since(started)))
	}
}
