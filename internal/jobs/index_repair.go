package jobs

import (
	"context"
	"log"
	"time"

	"mynd/internal/services"
)

// IndexRepairJob heals drift between the record store and the similarity
// index left behind by partial-success writes or deletes.
type IndexRepairJob struct {
	ingest   *services.IngestService
	interval time.Duration
	lastRun  time.Time
}

// NewIndexRepairJob creates a new index repair job
func NewIndexRepairJob(ingest *services.IngestService, interval time.Duration) *IndexRepairJob {
	return &IndexRepairJob{ingest: ingest, interval: interval}
}

// Run reconciles the two stores.
func (j *IndexRepairJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	indexed, removed, err := j.ingest.RepairIndex(ctx)
	if err != nil {
		return err
	}
	if indexed > 0 || removed > 0 {
		log.Printf("🔧 [INDEX-REPAIR] Re-indexed %d fragments, removed %d stale vectors", indexed, removed)
	}
	return nil
}

// GetNextRunTime returns when this job should next run
func (j *IndexRepairJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now().Add(j.interval)
	}
	return j.lastRun.Add(j.interval)
}
