package jobs

import (
	"context"

	"reseller-ledger-backend/internal/logger"
)

// RetryCompensations replays reversals that failed during saga rollback.
func (jr *JobRunner) RetryCompensations() {
	jr.runWithRecovery("RetryCompensations", func() {
		ctx := context.Background()

		summary, err := jr.services.Compensation.RetryPending(ctx)
		if err != nil {
			logger.Error("Failed to retry pending compensations", "error", err)
			return
		}
		if summary.Attempted == 0 {
			logger.Debug("No pending compensations")
			return
		}

		logger.Info("Retried pending compensations",
			"attempted", summary.Attempted,
			"succeeded", summary.Succeeded,
			"abandoned", summary.Abandoned,
		)
	})
}

// AuditBalances compares every reseller balance with its open sales.
func (jr *JobRunner) AuditBalances() {
	jr.runWithRecovery("AuditBalances", func() {
		ctx := context.Background()

		drifts, err := jr.services.Audit.AuditBalances(ctx)
		if err != nil {
			logger.Error("Failed to audit balances", "error", err)
			return
		}
		if len(drifts) == 0 {
			logger.Info("All reseller balances match their open sales")
			return
		}

		for _, d := range drifts {
			logger.Warn("Reseller balance drift",
				"resellerID", d.ResellerID,
				"recorded", d.Recorded.String(),
				"expected", d.Expected.String(),
				"repaired", d.Repaired,
			)
		}
	})
}
