package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/saga"
)

// NewOutboxHandler queues failed compensations for retry and raises an
// alert. It runs detached from request cancellation.
func NewOutboxHandler(repo repository.CompensationRepository, alerts AlertService) saga.FailureHandler {
	return func(ctx context.Context, sagaName string, step saga.Step, stepErr error) {
		if repo == nil || step.Compensation == nil {
			return
		}
		ctx = context.WithoutCancel(ctx)

		now := time.Now()
		c := *step.Compensation
		c.ID = uuid.NewString()
		c.Status = domain.CompensationStatusPending
		c.LastError = stepErr.Error()
		c.CreatedAt = now
		c.UpdatedAt = now
		if c.Operation == "" {
			c.Operation = sagaName
		}

		if err := repo.Create(ctx, &c); err != nil {
			logger.Error("Failed to queue compensation", "saga", sagaName, "step", step.Name, "error", err)
			return
		}
		logger.Warn("Compensation queued for retry", "id", c.ID, "kind", c.Kind, "reseller_id", c.ResellerID)

		if alerts != nil {
			if err := alerts.CompensationFailed(ctx, c); err != nil {
				logger.Error("Failed to send compensation alert", "id", c.ID, "error", err)
			}
		}
	}
}

type compensationService struct {
	compensations repository.CompensationRepository
	resellers     repository.ResellerRepository
	transactions  repository.TransactionRepository
	alerts        AlertService
	maxAttempts   int
	batchSize     int
	locks         *ResellerLocks
}

func NewCompensationService(repos Repositories, alerts AlertService, maxAttempts, batchSize int) CompensationService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &compensationService{
		compensations: repos.Compensations,
		resellers:     repos.Resellers,
		transactions:  repos.Transactions,
		alerts:        alerts,
		maxAttempts:   maxAttempts,
		batchSize:     batchSize,
		locks:         repos.locks(),
	}
}

// RetryPending re-applies queued compensations. Entries that keep failing are
// abandoned after the configured number of attempts.
func (s *compensationService) RetryPending(ctx context.Context) (RetrySummary, error) {
	logger.EnterMethod("compensationService.RetryPending")
	var summary RetrySummary

	pending, err := s.compensations.ListPending(ctx, s.batchSize)
	if err != nil {
		logger.ExitMethodWithError("compensationService.RetryPending", err)
		return summary, fmt.Errorf("failed to list pending compensations: %w", err)
	}

	for i := range pending {
		c := &pending[i]
		summary.Attempted++
		c.Attempts++
		c.UpdatedAt = time.Now()

		if err := s.apply(ctx, c); err != nil {
			c.LastError = err.Error()
			if c.Attempts >= s.maxAttempts {
				c.Status = domain.CompensationStatusAbandoned
				summary.Abandoned++
				logger.Error("Compensation abandoned", "id", c.ID, "attempts", c.Attempts, "error", err)
				if s.alerts != nil {
					if aerr := s.alerts.CompensationAbandoned(ctx, *c); aerr != nil {
						logger.Error("Failed to send abandonment alert", "id", c.ID, "error", aerr)
					}
				}
			} else {
				logger.Warn("Compensation retry failed", "id", c.ID, "attempts", c.Attempts, "error", err)
			}
		} else {
			c.Status = domain.CompensationStatusDone
			c.LastError = ""
			summary.Succeeded++
		}

		if err := s.compensations.Update(ctx, c); err != nil {
			logger.ExitMethodWithError("compensationService.RetryPending", err)
			return summary, fmt.Errorf("failed to update compensation %s: %w", c.ID, err)
		}
	}

	logger.ExitMethod("compensationService.RetryPending", "attempted", summary.Attempted, "succeeded", summary.Succeeded, "abandoned", summary.Abandoned)
	return summary, nil
}

func (s *compensationService) apply(ctx context.Context, c *domain.Compensation) error {
	switch c.Kind {
	case domain.CompensationBalanceAdjust:
		unlock := s.locks.lock(c.ResellerID)
		defer unlock()
		old, err := s.resellers.AdjustBalance(ctx, c.ResellerID, c.Amount)
		if err != nil {
			return err
		}
		logger.BalanceChange(c.ResellerID, old.String(), old.Add(c.Amount).String(), "compensation retry")
		return nil
	case domain.CompensationSalePayment:
		if c.Sale == nil {
			return fmt.Errorf("sale payment compensation %s has no sale", c.ID)
		}
		unlock := s.locks.lock(c.ResellerID)
		defer unlock()
		return s.transactions.UpdatePayment(ctx, c.Sale.SaleID, c.Sale.NewPaid, c.Sale.NewOutstanding, c.Sale.NewStatus)
	default:
		return fmt.Errorf("unknown compensation kind %q", c.Kind)
	}
}
