package jobs

import (
	"context"
	"time"

	"settlement-engine/internal/config"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/service"
)

// Sweeper is the part of the negotiation engine the jobs drive.
type Sweeper interface {
	ExpireDueOffers(ctx context.Context) (*service.SweepResult, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	sweeper Sweeper
	config  *config.Config
	timeout time.Duration
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(sweeper Sweeper, cfg *config.Config) *JobRunner {
	return &JobRunner{
		sweeper: sweeper,
		config:  cfg,
		timeout: 5 * time.Minute,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			panicked = true
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
	return false
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireOffers()
}
