package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// DepartureWorker processes departure movement jobs from the River queue.
// For now it logs the record; hooking in the arrivals/departures system's
// HTTP client happens here once its endpoint is settled.
type DepartureWorker struct {
	river.WorkerDefaults[DepartureJobArgs]
}

// Work processes a single departure job.
func (w *DepartureWorker) Work(ctx context.Context, job *river.Job[DepartureJobArgs]) error {
	slog.InfoContext(ctx, "processing departure record",
		"assignment_id", job.Args.AssignmentID,
		"entity_id", job.Args.EntityID,
		"destination", job.Args.Destination,
		"transport_method", job.Args.TransportMethod,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
