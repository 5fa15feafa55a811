// Package jobs runs background work over the shared replica: the scheduled
// stock consistency scan, and the queue plumbing around it.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/juckphai/salejuck/internal/inventory"
	"github.com/juckphai/salejuck/internal/platform/replica"
	"github.com/juckphai/salejuck/internal/pos"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockConsistency checks cached stock against movement history.
	TaskStockConsistency = "stock:consistency"
)

// NewStockConsistencyTask constructs the consistency scan task; it carries
// no payload because the scan always covers the whole document.
func NewStockConsistencyTask() *asynq.Task {
	return asynq.NewTask(TaskStockConsistency, nil)
}

// NewStockConsistencyHandler returns the handler for TaskStockConsistency.
// The worker reads the document straight from the replica: it never holds
// local state, so discrepancies are reported, not repaired. Repair stays an
// explicit admin action on a live node.
func NewStockConsistencyHandler(logger *slog.Logger, remote replica.Replica) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		snap, err := remote.Get(ctx)
		if err != nil {
			return err
		}
		if !snap.Exists {
			logger.Info("consistency scan skipped, no remote document")
			return nil
		}

		var doc pos.Document
		if err := json.Unmarshal(snap.Data, &doc); err != nil {
			logger.Error("remote document unparseable", slog.Any("error", err))
			return asynq.SkipRetry
		}
		pos.Normalize(&doc)

		report := inventory.Evaluate(&doc)
		if report.Consistent() {
			logger.Info("consistency scan clean", slog.Int("products", report.Products))
			return nil
		}
		for _, disc := range report.Discrepancies {
			logger.Warn("stock discrepancy",
				slog.Int64("product_id", disc.ProductID),
				slog.String("name", disc.Name),
				slog.Float64("recorded", disc.Recorded),
				slog.Float64("computed", disc.Computed))
		}
		return nil
	}
}
