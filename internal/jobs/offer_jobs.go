package jobs

import (
	"context"
	"fmt"

	"settlement-engine/internal/logger"
	"settlement-engine/internal/service"
)

// ExpireOffers moves sent offers past their due date to EXPIRED. It is the cron entry point.
func (jr *JobRunner) ExpireOffers() {
	_, _ = jr.RunExpireOffers(context.Background())
}

// RunExpireOffers runs one expiry sweep and returns its result. A panic inside the sweep is
// logged and reported as an error.
func (jr *JobRunner) RunExpireOffers(ctx context.Context) (res *service.SweepResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, jr.timeout)
	defer cancel()

	if jr.runWithRecovery("ExpireOffers", func() {
		res, err = jr.sweeper.ExpireDueOffers(ctx)
	}) {
		return nil, fmt.Errorf("expire offers: job panicked")
	}

	if res != nil {
		logger.Info("Expiry sweep finished",
			"scanned", res.Scanned,
			"expired", res.Expired,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	if err != nil {
		logger.Error("Expiry sweep reported failures", "error", err)
	}
	return res, err
}
