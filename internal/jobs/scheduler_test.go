package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	runs     int64
	interval time.Duration
}

func (j *countingJob) Run(context.Context) error {
	atomic.AddInt64(&j.runs, 1)
	return nil
}

func (j *countingJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}

func TestSchedulerRunNow(t *testing.T) {
	scheduler := NewJobScheduler()
	job := &countingJob{interval: time.Hour}
	scheduler.Register("counter", job)

	if err := scheduler.RunNow("counter"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if atomic.LoadInt64(&job.runs) != 1 {
		t.Errorf("Expected 1 run, got %d", job.runs)
	}

	// Unknown jobs are a logged no-op, not an error.
	if err := scheduler.RunNow("missing"); err != nil {
		t.Errorf("Unknown job should not error: %v", err)
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	scheduler := NewJobScheduler()
	job := &countingJob{interval: 10 * time.Millisecond}
	scheduler.Register("counter", job)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	runs := atomic.LoadInt64(&job.runs)
	if runs == 0 {
		t.Fatal("Expected the job to run at least once")
	}

	// No further runs after Stop.
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&job.runs); got != runs {
		t.Errorf("Job ran after Stop: %d -> %d", runs, got)
	}
}
