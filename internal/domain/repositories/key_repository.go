package repositories

import (
	"context"

	"keystock.backend/internal/domain/entities"
)

// KeyRepository stores key records in insertion order.
// Lookups that miss return domainerrors.ErrNotFound.
type KeyRepository interface {
	List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, error)
	GetByKey(ctx context.Context, key string) (*entities.Key, error)
	FirstAvailable(ctx context.Context) (*entities.Key, error)
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	CreateBatch(ctx context.Context, keys []*entities.Key) error
	Update(ctx context.Context, key *entities.Key) error
	Delete(ctx context.Context, id int64) error
	CountAvailable(ctx context.Context) (int, error)
}

// NotificationRepository persists the low-stock watermark and notifier settings
type NotificationRepository interface {
	GetState(ctx context.Context) (entities.NotificationState, error)
	SaveState(ctx context.Context, state entities.NotificationState) error
	GetConfig(ctx context.Context) (entities.NotificationConfig, error)
	SaveConfig(ctx context.Context, cfg entities.NotificationConfig) error
}
