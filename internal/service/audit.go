package service

import (
	"context"
	"fmt"

	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

type auditService struct {
	resellers    repository.ResellerRepository
	transactions repository.TransactionRepository
	alerts       AlertService
	repair       bool
	locks        *ResellerLocks
}

// NewAuditService compares every recorded due balance with the sum of the
// reseller's outstanding sales. With repair set, drifted balances are
// overwritten with the recomputed value.
func NewAuditService(repos Repositories, alerts AlertService, repair bool) AuditService {
	return &auditService{
		resellers:    repos.Resellers,
		transactions: repos.Transactions,
		alerts:       alerts,
		repair:       repair,
		locks:        repos.locks(),
	}
}

func (s *auditService) AuditBalances(ctx context.Context) ([]BalanceDrift, error) {
	logger.EnterMethod("auditService.AuditBalances", "repair", s.repair)

	resellers, err := s.resellers.List(ctx)
	if err != nil {
		logger.ExitMethodWithError("auditService.AuditBalances", err)
		return nil, fmt.Errorf("failed to list resellers: %w", err)
	}

	var drifts []BalanceDrift
	for _, r := range resellers {
		unlock := s.locks.lock(r.ID)
		drift, err := s.check(ctx, r.ID)
		unlock()
		if err != nil {
			logger.ExitMethodWithError("auditService.AuditBalances", err)
			return drifts, err
		}
		if drift != nil {
			drift.ResellerName = r.Name
			drifts = append(drifts, *drift)
		}
	}

	if len(drifts) > 0 && s.alerts != nil {
		if err := s.alerts.BalanceDrift(ctx, drifts); err != nil {
			logger.Error("Failed to send drift alert", "error", err)
		}
	}

	logger.ExitMethod("auditService.AuditBalances", "resellers", len(resellers), "drifted", len(drifts))
	return drifts, nil
}

// check re-reads the reseller under its lock so no ledger operation is
// half-applied while comparing.
func (s *auditService) check(ctx context.Context, resellerID int32) (*BalanceDrift, error) {
	r, err := s.resellers.GetByID(ctx, resellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reseller %d: %w", resellerID, err)
	}
	expected, err := s.transactions.SumOutstanding(ctx, resellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding for reseller %d: %w", resellerID, err)
	}
	if r.DueBalance.Equal(expected) {
		return nil, nil
	}

	drift := &BalanceDrift{ResellerID: resellerID, Recorded: r.DueBalance, Expected: expected}
	logger.Warn("Balance drift detected", "reseller_id", resellerID, "recorded", r.DueBalance.String(), "expected", expected.String())

	if s.repair {
		if err := s.resellers.SetBalance(ctx, resellerID, expected); err != nil {
			return nil, fmt.Errorf("failed to repair balance of reseller %d: %w", resellerID, err)
		}
		logger.BalanceChange(resellerID, r.DueBalance.String(), expected.String(), "audit repair")
		drift.Repaired = true
	}
	return drift, nil
}
