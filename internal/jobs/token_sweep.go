package jobs

import (
	"context"
	"log"
	"time"

	"mynd/internal/services"
)

// TokenSweepJob deletes expired capability tokens. Expired tokens are
// already rejected at validation time; the sweep only keeps the table from
// growing without bound.
type TokenSweepJob struct {
	tokens   *services.TokenService
	interval time.Duration
	lastRun  time.Time
}

// NewTokenSweepJob creates a new token sweep job
func NewTokenSweepJob(tokens *services.TokenService, interval time.Duration) *TokenSweepJob {
	return &TokenSweepJob{tokens: tokens, interval: interval}
}

// Run deletes all tokens past their expiry.
func (j *TokenSweepJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	swept, err := j.tokens.Sweep(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		log.Printf("🧹 [TOKEN-SWEEP] Removed %d expired tokens", swept)
	}
	return nil
}

// GetNextRunTime returns when this job should next run
func (j *TokenSweepJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now().Add(j.interval)
	}
	return j.lastRun.Add(j.interval)
}
