package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// MovementWorker processes movement notification jobs from the River queue.
// For now it logs the movement; future versions will dispatch to webhooks
// or downstream compliance exports. It never writes back to the ledger.
type MovementWorker struct {
	river.WorkerDefaults[MovementJobArgs]
}

// Work processes a single movement job.
func (w *MovementWorker) Work(ctx context.Context, job *river.Job[MovementJobArgs]) error {
	slog.InfoContext(ctx, "processing movement",
		"record_id", job.Args.RecordID,
		"entity_id", job.Args.EntityID,
		"entity_code", job.Args.EntityCode,
		"tenant_id", job.Args.TenantID,
		"action", job.Args.Action,
		"new_state", job.Args.NewState,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
