package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"keystock.backend/internal/domain/entities"
	domainerrors "keystock.backend/internal/domain/errors"
	"keystock.backend/internal/domain/repositories"
	"keystock.backend/pkg/logger"
)

// SettingsInput carries a partial notification config update; nil fields are
// left unchanged.
type SettingsInput struct {
	Thresholds      *[]int  `json:"thresholds"`
	MessageTemplate *string `json:"messageTemplate"`
}

// SettingsUsecase reads and edits the low-stock notification config
type SettingsUsecase struct {
	notifRepo repositories.NotificationRepository
	monitor   StockMonitor
}

func NewSettingsUsecase(notifRepo repositories.NotificationRepository, monitor StockMonitor) *SettingsUsecase {
	return &SettingsUsecase{
		notifRepo: notifRepo,
		monitor:   monitor,
	}
}

func (u *SettingsUsecase) Get(ctx context.Context) (entities.NotificationConfig, error) {
	return u.notifRepo.GetConfig(ctx)
}

// Update validates and stores the config. Changing thresholds clears the
// watermark and re-evaluates stock against the new levels.
func (u *SettingsUsecase) Update(ctx context.Context, input SettingsInput) (entities.NotificationConfig, error) {
	cfg, err := u.notifRepo.GetConfig(ctx)
	if err != nil {
		return entities.NotificationConfig{}, fmt.Errorf("load notification config: %w", err)
	}

	thresholdsChanged := false
	if input.Thresholds != nil {
		thresholds, err := validateThresholds(*input.Thresholds)
		if err != nil {
			return entities.NotificationConfig{}, err
		}
		thresholdsChanged = !equalInts(thresholds, entities.NormalizeThresholds(cfg.Thresholds))
		cfg.Thresholds = thresholds
	}
	if input.MessageTemplate != nil {
		if strings.TrimSpace(*input.MessageTemplate) == "" {
			return entities.NotificationConfig{}, domainerrors.Validation(domainerrors.CodeInvalidTemplate, "message template must not be empty")
		}
		cfg.MessageTemplate = *input.MessageTemplate
	}

	if err := u.notifRepo.SaveConfig(ctx, cfg); err != nil {
		return entities.NotificationConfig{}, fmt.Errorf("save notification config: %w", err)
	}
	logger.Info(ctx, "Notification settings updated",
		zap.Ints("thresholds", cfg.Thresholds),
		zap.Bool("thresholds_changed", thresholdsChanged),
	)

	if thresholdsChanged {
		if err := u.notifRepo.SaveState(ctx, entities.NotificationState{}); err != nil {
			return entities.NotificationConfig{}, fmt.Errorf("reset notification state: %w", err)
		}
		if u.monitor != nil {
			if err := u.monitor.Evaluate(ctx); err != nil {
				logger.Error(ctx, "Low-stock evaluation failed", zap.Error(err))
			}
		}
	}
	return cfg, nil
}

func validateThresholds(in []int) ([]int, error) {
	if len(in) == 0 {
		return nil, domainerrors.Validation(domainerrors.CodeInvalidThresholds, "at least one threshold is required")
	}
	for _, t := range in {
		if t <= 0 {
			return nil, domainerrors.Validation(domainerrors.CodeInvalidThresholds, "thresholds must be positive")
		}
	}
	return entities.NormalizeThresholds(in), nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
