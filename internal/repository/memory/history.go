package memory

import (
	"context"
	"sync"

	"reseller-ledger-backend/internal/domain"
)

// HistoryRepository keeps undo histories per session. It is the fallback
// when Redis is not configured or unreachable.
type HistoryRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.History
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{sessions: make(map[string]domain.History)}
}

func (r *HistoryRepository) Load(_ context.Context, sessionID string) (*domain.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.sessions[sessionID]
	out := domain.History{
		Undo: append([]domain.Operation(nil), h.Undo...),
		Redo: append([]domain.Operation(nil), h.Redo...),
	}
	return &out, nil
}

func (r *HistoryRepository) Save(_ context.Context, sessionID string, h *domain.History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = domain.History{
		Undo: append([]domain.Operation(nil), h.Undo...),
		Redo: append([]domain.Operation(nil), h.Redo...),
	}
	return nil
}
