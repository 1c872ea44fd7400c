package repositories

import (
	"context"

	"keystock.backend/internal/domain/entities"
	domainerrors "keystock.backend/internal/domain/errors"
	"keystock.backend/internal/infrastructure/filestore"
)

// FileKeyRepository serves keys and notifier state from a filestore document.
// Returned records are copies; changes only land through Update.
type FileKeyRepository struct {
	store *filestore.Store
}

func NewFileKeyRepository(store *filestore.Store) *FileKeyRepository {
	return &FileKeyRepository{store: store}
}

func (r *FileKeyRepository) List(_ context.Context, filter entities.KeyFilter) ([]*entities.Key, error) {
	items := make([]*entities.Key, 0)
	r.store.View(func(doc *filestore.Document) {
		for _, k := range doc.Keys {
			if filter.Matches(k) {
				items = append(items, k.Clone())
			}
		}
	})
	return items, nil
}

func (r *FileKeyRepository) GetByKey(_ context.Context, key string) (*entities.Key, error) {
	var found *entities.Key
	r.store.View(func(doc *filestore.Document) {
		for _, k := range doc.Keys {
			if k.Key == key {
				found = k.Clone()
				return
			}
		}
	})
	if found == nil {
		return nil, domainerrors.ErrNotFound
	}
	return found, nil
}

func (r *FileKeyRepository) FirstAvailable(_ context.Context) (*entities.Key, error) {
	var found *entities.Key
	r.store.View(func(doc *filestore.Document) {
		for _, k := range doc.Keys {
			if k.Available() {
				found = k.Clone()
				return
			}
		}
	})
	if found == nil {
		return nil, domainerrors.ErrNotFound
	}
	return found, nil
}

func (r *FileKeyRepository) ExistingKeys(_ context.Context, keys []string) (map[string]bool, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	existing := make(map[string]bool)
	r.store.View(func(doc *filestore.Document) {
		for _, k := range doc.Keys {
			if _, ok := wanted[k.Key]; ok {
				existing[k.Key] = true
			}
		}
	})
	return existing, nil
}

func (r *FileKeyRepository) CreateBatch(_ context.Context, keys []*entities.Key) error {
	return r.store.Mutate(func(doc *filestore.Document) error {
		for _, k := range keys {
			k.ID = doc.NextID
			doc.NextID++
			if k.History == nil {
				k.History = []entities.HistoryEvent{}
			}
			doc.Keys = append(doc.Keys, k.Clone())
		}
		return nil
	})
}

func (r *FileKeyRepository) Update(_ context.Context, key *entities.Key) error {
	return r.store.Mutate(func(doc *filestore.Document) error {
		for i, k := range doc.Keys {
			if k.ID == key.ID {
				doc.Keys[i] = key.Clone()
				return nil
			}
		}
		return domainerrors.ErrNotFound
	})
}

func (r *FileKeyRepository) Delete(_ context.Context, id int64) error {
	return r.store.Mutate(func(doc *filestore.Document) error {
		for i, k := range doc.Keys {
			if k.ID == id {
				doc.Keys = append(doc.Keys[:i], doc.Keys[i+1:]...)
				return nil
			}
		}
		return domainerrors.ErrNotFound
	})
}

func (r *FileKeyRepository) CountAvailable(_ context.Context) (int, error) {
	count := 0
	r.store.View(func(doc *filestore.Document) {
		for _, k := range doc.Keys {
			if k.Available() {
				count++
			}
		}
	})
	return count, nil
}

func (r *FileKeyRepository) GetState(_ context.Context) (entities.NotificationState, error) {
	var state entities.NotificationState
	r.store.View(func(doc *filestore.Document) {
		state.LastWarned = doc.LastWarned
	})
	return state, nil
}

func (r *FileKeyRepository) SaveState(_ context.Context, state entities.NotificationState) error {
	return r.store.Mutate(func(doc *filestore.Document) error {
		doc.LastWarned = state.LastWarned
		return nil
	})
}

func (r *FileKeyRepository) GetConfig(_ context.Context) (entities.NotificationConfig, error) {
	cfg := entities.DefaultNotificationConfig()
	r.store.View(func(doc *filestore.Document) {
		if doc.TelegramConfig != nil {
			cfg = entities.NotificationConfig{
				Thresholds:      append([]int(nil), doc.TelegramConfig.Thresholds...),
				MessageTemplate: doc.TelegramConfig.MessageTemplate,
			}
		}
	})
	return cfg.WithDefaults(), nil
}

func (r *FileKeyRepository) SaveConfig(_ context.Context, cfg entities.NotificationConfig) error {
	return r.store.Mutate(func(doc *filestore.Document) error {
		stored := entities.NotificationConfig{
			Thresholds:      append([]int(nil), cfg.Thresholds...),
			MessageTemplate: cfg.MessageTemplate,
		}
		doc.TelegramConfig = &stored
		return nil
	})
}
