package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"keystock.backend/internal/domain/entities"
	domainerrors "keystock.backend/internal/domain/errors"
	"keystock.backend/internal/domain/repositories"
	"keystock.backend/pkg/keyformat"
	"keystock.backend/pkg/logger"
	"keystock.backend/pkg/metrics"
)

var keyNow = func() time.Time { return time.Now().UTC() }

// KeyUsecase implements the key lifecycle. Keys are addressed by their key
// string; the numeric id only orders records.
//
// Acquisition is advisory: AcquireFree logs that a key was handed out but
// does not claim it, so two callers may receive the same key.
type KeyUsecase struct {
	keyRepo repositories.KeyRepository
	monitor StockMonitor
}

func NewKeyUsecase(keyRepo repositories.KeyRepository, monitor StockMonitor) *KeyUsecase {
	return &KeyUsecase{
		keyRepo: keyRepo,
		monitor: monitor,
	}
}

// Create stores every candidate that is well formed and not already
// present. Invalid or known candidates are skipped silently; duplicates
// inside one batch are not collapsed.
func (u *KeyUsecase) Create(ctx context.Context, candidates []string) ([]*entities.Key, error) {
	if len(candidates) == 0 {
		return nil, domainerrors.Validation(domainerrors.CodeKeyMissing, "key missing from request body")
	}

	existing, err := u.keyRepo.ExistingKeys(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("check existing keys: %w", err)
	}

	now := keyNow()
	accepted := make([]*entities.Key, 0, len(candidates))
	for _, c := range candidates {
		if !keyformat.Valid(c) || existing[c] {
			continue
		}
		accepted = append(accepted, &entities.Key{
			Key:       c,
			CreatedAt: now,
			History:   []entities.HistoryEvent{},
		})
	}
	if len(accepted) == 0 {
		return nil, domainerrors.Validation(domainerrors.CodeNoValidKey, "no valid key supplied")
	}

	if err := u.keyRepo.CreateBatch(ctx, accepted); err != nil {
		return nil, fmt.Errorf("create keys: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("create").Add(float64(len(accepted)))
	logger.Info(ctx, "Keys created", zap.Int("submitted", len(candidates)), zap.Int("created", len(accepted)))
	u.checkStock(ctx)
	return accepted, nil
}

// List returns keys matching every supplied filter, in insertion order
func (u *KeyUsecase) List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, error) {
	return u.keyRepo.List(ctx, filter)
}

// ListFree returns keys not in use. Invalid keys are included so the
// dashboard can flag them.
func (u *KeyUsecase) ListFree(ctx context.Context) ([]*entities.Key, error) {
	inUse := false
	return u.keyRepo.List(ctx, entities.KeyFilter{InUse: &inUse})
}

// ListActive returns keys currently in use
func (u *KeyUsecase) ListActive(ctx context.Context) ([]*entities.Key, error) {
	inUse := true
	return u.keyRepo.List(ctx, entities.KeyFilter{InUse: &inUse})
}

// AcquireFree returns the oldest available key and records a free event
func (u *KeyUsecase) AcquireFree(ctx context.Context) (*entities.Key, error) {
	key, err := u.keyRepo.FirstAvailable(ctx)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.NoFreeKey()
		}
		return nil, err
	}

	key.AppendHistory(entities.HistoryActionFree, keyNow(), null.String{})
	if err := u.keyRepo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("record free event: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("acquire").Inc()
	logger.Info(ctx, "free key issued", zap.Int64("id", key.ID), zap.String("key", key.Key))
	return key, nil
}

// MarkInUse claims key for assignedTo. The assignee is stored trimmed; a
// blank one is stored as null.
func (u *KeyUsecase) MarkInUse(ctx context.Context, keyValue, assignedTo string) (*entities.Key, error) {
	key, err := u.find(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	now := keyNow()
	assignee := null.String{}
	if trimmed := strings.TrimSpace(assignedTo); trimmed != "" {
		assignee = null.StringFrom(trimmed)
	}
	key.InUse = true
	key.AssignedTo = assignee
	key.LastUsedAt = null.TimeFrom(now)
	key.AppendHistory(entities.HistoryActionInUse, now, assignee)

	if err := u.keyRepo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("mark key in use: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("inuse").Inc()
	logger.Info(ctx, "Key marked in use", zap.String("key", key.Key), zap.String("assigned_to", assignee.String))
	u.checkStock(ctx)
	return key, nil
}

// Release frees a key and clears its assignment. Invalid stays untouched.
func (u *KeyUsecase) Release(ctx context.Context, keyValue string) (*entities.Key, error) {
	key, err := u.find(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	key.InUse = false
	key.AssignedTo = null.String{}
	key.AppendHistory(entities.HistoryActionRelease, keyNow(), null.String{})

	if err := u.keyRepo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("release key: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("release").Inc()
	logger.Info(ctx, "Key released", zap.String("key", key.Key))
	u.checkStock(ctx)
	return key, nil
}

// Invalidate permanently excludes a key from acquisition
func (u *KeyUsecase) Invalidate(ctx context.Context, keyValue string) (*entities.Key, error) {
	key, err := u.find(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	key.Invalid = true
	if err := u.keyRepo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("invalidate key: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("invalidate").Inc()
	logger.Info(ctx, "Key invalidated", zap.String("key", key.Key))
	u.checkStock(ctx)
	return key, nil
}

// Delete removes a key together with its history
func (u *KeyUsecase) Delete(ctx context.Context, keyValue string) error {
	key, err := u.find(ctx, keyValue)
	if err != nil {
		return err
	}

	if err := u.keyRepo.Delete(ctx, key.ID); err != nil {
		if domainerrors.IsNotFound(err) {
			return domainerrors.KeyNotFound()
		}
		return fmt.Errorf("delete key: %w", err)
	}

	metrics.KeyOperationsTotal.WithLabelValues("delete").Inc()
	logger.Info(ctx, "Key deleted", zap.String("key", key.Key))
	u.checkStock(ctx)
	return nil
}

// History returns the key's events in the order they happened
func (u *KeyUsecase) History(ctx context.Context, keyValue string) ([]entities.HistoryEvent, error) {
	key, err := u.find(ctx, keyValue)
	if err != nil {
		return nil, err
	}
	if key.History == nil {
		return []entities.HistoryEvent{}, nil
	}
	return key.History, nil
}

func (u *KeyUsecase) find(ctx context.Context, keyValue string) (*entities.Key, error) {
	key, err := u.keyRepo.GetByKey(ctx, keyValue)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.KeyNotFound()
		}
		return nil, err
	}
	return key, nil
}

// checkStock runs the low-stock monitor. Its failures never fail the
// mutation that triggered it.
func (u *KeyUsecase) checkStock(ctx context.Context) {
	if u.monitor == nil {
		return
	}
	if err := u.monitor.Evaluate(ctx); err != nil {
		logger.Error(ctx, "Low-stock evaluation failed", zap.Error(err))
	}
}
