package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

const historyKeyPrefix = "ledger:history:"

type historyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHistoryRepository stores each session's undo history as one JSON value
// that expires after ttl of inactivity.
func NewHistoryRepository(client *redis.Client, ttl time.Duration) repository.HistoryRepository {
	return &historyRepository{client: client, ttl: ttl}
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

func (r *historyRepository) Load(ctx context.Context, sessionID string) (*domain.History, error) {
	logger.ExternalServiceCall("redis", "GET", "key", historyKey(sessionID))

	data, err := r.client.Get(ctx, historyKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.ExternalServiceResult("redis", "GET", nil, "hit", false)
		return &domain.History{}, nil
	}
	if err != nil {
		logger.ExternalServiceResult("redis", "GET", err)
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var h domain.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	logger.ExternalServiceResult("redis", "GET", nil, "hit", true, "undo", len(h.Undo), "redo", len(h.Redo))
	return &h, nil
}

func (r *historyRepository) Save(ctx context.Context, sessionID string, h *domain.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	logger.ExternalServiceCall("redis", "SET", "key", historyKey(sessionID))
	err = r.client.Set(ctx, historyKey(sessionID), data, r.ttl).Err()
	logger.ExternalServiceResult("redis", "SET", err)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// NewClient connects to Redis and returns nil when the server cannot be
// reached, letting callers fall back to in-memory history.
func NewClient(ctx context.Context, addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, continuing without Redis", "address", addr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("Redis connection established", "address", addr)
	return client
}
