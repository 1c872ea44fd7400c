package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"keystock.backend/internal/domain/entities"
	"keystock.backend/internal/domain/repositories"
	"keystock.backend/pkg/logger"
	"keystock.backend/pkg/metrics"
)

// Dispatcher hands a message to the outbound channel without waiting for it
type Dispatcher interface {
	Enabled() bool
	Dispatch(text string)
}

// StockMonitor re-evaluates low-stock state after a mutation
type StockMonitor interface {
	Evaluate(ctx context.Context) error
}

// LowStockNotifier warns once per threshold crossing while free keys run low.
//
// The watermark (lastWarned) holds the most severe threshold already
// reported; null means no warning is active. It only moves down, and is
// cleared once the free count is back at or above the highest threshold.
type LowStockNotifier struct {
	keyRepo    repositories.KeyRepository
	notifRepo  repositories.NotificationRepository
	dispatcher Dispatcher

	mu sync.Mutex
}

func NewLowStockNotifier(
	keyRepo repositories.KeyRepository,
	notifRepo repositories.NotificationRepository,
	dispatcher Dispatcher,
) *LowStockNotifier {
	return &LowStockNotifier{
		keyRepo:    keyRepo,
		notifRepo:  notifRepo,
		dispatcher: dispatcher,
	}
}

// Evaluate compares the free count with the configured thresholds and
// fires at most one notification.
func (n *LowStockNotifier) Evaluate(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	free, err := n.keyRepo.CountAvailable(ctx)
	if err != nil {
		return fmt.Errorf("count available keys: %w", err)
	}
	metrics.KeysAvailable.Set(float64(free))

	cfg, err := n.notifRepo.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("load notification config: %w", err)
	}
	state, err := n.notifRepo.GetState(ctx)
	if err != nil {
		return fmt.Errorf("load notification state: %w", err)
	}

	thresholds := entities.NormalizeThresholds(cfg.Thresholds)
	if len(thresholds) == 0 {
		return nil
	}

	if free >= thresholds[0] {
		if !state.Warning() {
			return nil
		}
		logger.Info(ctx, "Low-stock warning cleared", zap.Int("free", free))
		return n.notifRepo.SaveState(ctx, entities.NotificationState{})
	}

	// most severe newly crossed threshold wins
	crossed := 0
	for _, t := range thresholds {
		if free < t && state.Below(t) {
			crossed = t
		}
	}
	if crossed == 0 {
		return nil
	}

	msg := cfg.Render(free)
	metrics.LowStockWarningsTotal.Inc()
	logger.Warn(ctx, "Free keys below threshold",
		zap.Int("free", free),
		zap.Int("threshold", crossed),
		zap.Bool("dispatch", n.canDispatch()),
	)
	if n.canDispatch() {
		n.dispatcher.Dispatch(msg)
	}

	return n.notifRepo.SaveState(ctx, entities.NotificationState{LastWarned: null.IntFrom(crossed)})
}

func (n *LowStockNotifier) canDispatch() bool {
	return n.dispatcher != nil && n.dispatcher.Enabled()
}
