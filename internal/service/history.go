package service

import (
	"context"
	"fmt"
	"sync"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/saga"
)

type historyService struct {
	applier
	repo  repository.HistoryRepository
	depth int

	mu   sync.Mutex
	busy map[string]bool
	// store serializes load-modify-save of history documents.
	store sync.Mutex
}

// NewHistoryService keeps a bounded undo/redo history per session.
func NewHistoryService(repos Repositories, alerts AlertService, depth int) HistoryService {
	if depth <= 0 {
		depth = domain.DefaultHistoryDepth
	}
	return &historyService{
		applier: applier{
			resellers:    repos.Resellers,
			transactions: repos.Transactions,
			outbox:       NewOutboxHandler(repos.Compensations, alerts),
			locks:        repos.locks(),
		},
		repo:  repos.History,
		depth: depth,
		busy:  make(map[string]bool),
	}
}

func (s *historyService) Record(ctx context.Context, op domain.Operation) {
	session := SessionFromContext(ctx)
	if s.isBusy(session) {
		logger.Warn("Undo or redo in progress, operation not recorded", "session", session, "kind", op.Kind)
		return
	}

	s.store.Lock()
	defer s.store.Unlock()

	h, err := s.repo.Load(ctx, session)
	if err != nil {
		logger.Error("Failed to load history", "session", session, "error", err)
		return
	}
	h.Push(op, s.depth)
	if err := s.repo.Save(ctx, session, h); err != nil {
		logger.Error("Failed to save history", "session", session, "error", err)
	}
}

func (s *historyService) History(ctx context.Context) (*domain.History, error) {
	return s.repo.Load(ctx, SessionFromContext(ctx))
}

func (s *historyService) Undo(ctx context.Context) (*domain.Operation, error) {
	return s.replay(ctx, true)
}

func (s *historyService) Redo(ctx context.Context) (*domain.Operation, error) {
	return s.replay(ctx, false)
}

// replay reverses (undo) or re-applies (redo) the top operation of the
// session's stack. The stacks only move once every step has succeeded.
func (s *historyService) replay(ctx context.Context, undo bool) (*domain.Operation, error) {
	method := "historyService.Redo"
	if undo {
		method = "historyService.Undo"
	}
	session := SessionFromContext(ctx)
	logger.EnterMethod(method, "session", session)

	if !s.acquire(session) {
		return nil, ErrHistoryBusy
	}
	defer s.release(session)

	h, err := s.repo.Load(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var op domain.Operation
	var ok bool
	if undo {
		op, ok = h.PeekUndo()
		if !ok {
			return nil, ErrNothingToUndo
		}
	} else {
		op, ok = h.PeekRedo()
		if !ok {
			return nil, ErrNothingToRedo
		}
	}

	unlock := s.locks.lock(operationResellers(op)...)
	defer unlock()

	var steps []saga.Step
	name := fmt.Sprintf("redo %s", op.Kind)
	if undo {
		steps = s.undoSteps(op)
		name = fmt.Sprintf("undo %s", op.Kind)
	} else {
		steps = s.redoSteps(op)
	}

	sg := s.newSaga(name)
	for _, step := range steps {
		if err := sg.Run(ctx, step); err != nil {
			err = sg.Abort(ctx, fmt.Errorf("failed to %s: %w", name, err))
			logger.ExitMethodWithError(method, err)
			return nil, err
		}
	}

	s.store.Lock()
	defer s.store.Unlock()
	// Re-read so entries pushed by other requests are kept.
	if h, err = s.repo.Load(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to reload history: %w", err)
	}
	if undo {
		h.MarkUndone()
	} else {
		h.MarkRedone(s.depth)
	}
	if err := s.repo.Save(ctx, session, h); err != nil {
		return nil, fmt.Errorf("failed to save history: %w", err)
	}

	logger.ExitMethod(method, "operation", op.ID, "kind", op.Kind)
	return &op, nil
}

func (s *historyService) undoSteps(op domain.Operation) []saga.Step {
	const name = "undo"
	var steps []saga.Step
	var removed map[int32]bool

	switch op.Kind {
	case domain.OperationAdd, domain.OperationImport, domain.OperationDuplicate:
		ids := transactionIDs(op.After)
		steps = append(steps, s.presentStep(ids), s.deleteStep(ids, op.After))
		removed = idSet(ids)
	case domain.OperationEdit:
		for i := range op.Before {
			steps = append(steps, s.updateStep(&op.After[i], &op.Before[i]))
		}
	case domain.OperationDelete:
		steps = append(steps, s.restoreStep(op.Before))
	}

	for i := len(op.Sales) - 1; i >= 0; i-- {
		// Payments into records removed above went with them.
		if removed[op.Sales[i].SaleID] {
			continue
		}
		steps = append(steps, s.salePaymentStep(name, op.Sales[i].Inverse()))
	}
	for i := len(op.Balances) - 1; i >= 0; i-- {
		b := op.Balances[i]
		steps = append(steps, s.adjustStep(name, b.ResellerID, b.Amount().Neg(), new([]domain.BalanceDelta)))
	}
	return steps
}

func (s *historyService) redoSteps(op domain.Operation) []saga.Step {
	const name = "redo"
	var steps []saga.Step

	if op.Kind == domain.OperationDelete {
		ids := transactionIDs(op.Before)
		steps = append(steps, s.presentStep(ids))
		// Sales must still exist when their payments are re-applied.
		for _, d := range op.Sales {
			steps = append(steps, s.salePaymentStep(name, d))
		}
		for _, b := range op.Balances {
			steps = append(steps, s.adjustStep(name, b.ResellerID, b.Amount(), new([]domain.BalanceDelta)))
		}
		return append(steps, s.deleteStep(ids, op.Before))
	}

	var restored map[int32]bool
	switch op.Kind {
	case domain.OperationAdd, domain.OperationImport, domain.OperationDuplicate:
		steps = append(steps, s.restoreStep(op.After))
		restored = idSet(transactionIDs(op.After))
	case domain.OperationEdit:
		for i := range op.After {
			steps = append(steps, s.updateStep(&op.Before[i], &op.After[i]))
		}
	}
	for _, d := range op.Sales {
		// Restored records already carry their final payment.
		if restored[d.SaleID] {
			continue
		}
		steps = append(steps, s.salePaymentStep(name, d))
	}
	for _, b := range op.Balances {
		steps = append(steps, s.adjustStep(name, b.ResellerID, b.Amount(), new([]domain.BalanceDelta)))
	}
	return steps
}

// presentStep fails unless every id is still stored, so balances are not
// reversed for records another session already removed.
func (a *applier) presentStep(ids []int32) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("check %d transaction(s) exist", len(ids)),
		Do: func(ctx context.Context) error {
			_, err := a.loadSelection(ctx, ids)
			return err
		},
	}
}

// restoreStep re-inserts records under their original ids.
func (a *applier) restoreStep(records []domain.Transaction) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("restore %d transaction(s)", len(records)),
		Do: func(ctx context.Context) error {
			return a.transactions.Restore(ctx, records)
		},
		Compensate: func(ctx context.Context) error {
			return a.transactions.Delete(ctx, transactionIDs(records))
		},
	}
}

func (s *historyService) isBusy(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[session]
}

func (s *historyService) acquire(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[session] {
		return false
	}
	s.busy[session] = true
	return true
}

func (s *historyService) release(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, session)
}

func transactionIDs(txs []domain.Transaction) []int32 {
	ids := make([]int32, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return ids
}

func idSet(ids []int32) map[int32]bool {
	set := make(map[int32]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func operationResellers(op domain.Operation) []int32 {
	var ids []int32
	for _, tx := range op.Before {
		ids = append(ids, tx.ResellerID)
	}
	for _, tx := range op.After {
		ids = append(ids, tx.ResellerID)
	}
	for _, b := range op.Balances {
		ids = append(ids, b.ResellerID)
	}
	for _, d := range op.Sales {
		if d.ResellerID != 0 {
			ids = append(ids, d.ResellerID)
		}
	}
	return ids
}
