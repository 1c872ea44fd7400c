package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"keystock.backend/internal/domain/entities"
	domainerrors "keystock.backend/internal/domain/errors"
	domainRepos "keystock.backend/internal/domain/repositories"
	"keystock.backend/internal/infrastructure/models"
)

const (
	settingLastWarned     = "last_warned"
	settingTelegramConfig = "telegram_config"
)

// GormKeyRepository is the SQL-backed alternative to FileKeyRepository.
// Every call is its own write; there is no batching across calls.
type GormKeyRepository struct {
	db  *gorm.DB
	uow domainRepos.UnitOfWork
}

func NewGormKeyRepository(db *gorm.DB) *GormKeyRepository {
	return &GormKeyRepository{db: db, uow: NewUnitOfWork(db)}
}

// AutoMigrate creates or updates the key store tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func (r *GormKeyRepository) withHistory(db *gorm.DB) *gorm.DB {
	return db.Preload("History", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("seq ASC")
	})
}

func (r *GormKeyRepository) List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, error) {
	query := r.withHistory(GetDB(ctx, r.db)).Model(&models.Key{})
	if filter.InUse != nil {
		query = query.Where("in_use = ?", *filter.InUse)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}

	var ms []models.Key
	if err := query.Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}

	items := make([]*entities.Key, 0, len(ms))
	for i := range ms {
		items = append(items, r.toEntity(&ms[i]))
	}
	return items, nil
}

func (r *GormKeyRepository) first(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*entities.Key, error) {
	var m models.Key
	if err := scope(r.withHistory(GetDB(ctx, r.db))).Order("id ASC").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *GormKeyRepository) GetByKey(ctx context.Context, key string) (*entities.Key, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("license_key = ?", key)
	})
}

func (r *GormKeyRepository) FirstAvailable(ctx context.Context) (*entities.Key, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("in_use = ? AND invalid = ?", false, false)
	})
}

func (r *GormKeyRepository) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(keys) == 0 {
		return existing, nil
	}
	var found []string
	if err := GetDB(ctx, r.db).Model(&models.Key{}).Where("license_key IN ?", keys).Pluck("license_key", &found).Error; err != nil {
		return nil, err
	}
	for _, k := range found {
		existing[k] = true
	}
	return existing, nil
}

func (r *GormKeyRepository) CreateBatch(ctx context.Context, keys []*entities.Key) error {
	return r.uow.Do(ctx, func(ctx context.Context) error {
		db := GetDB(ctx, r.db)
		for _, k := range keys {
			m := r.toModel(k)
			m.ID = 0
			if err := db.Omit("History").Create(m).Error; err != nil {
				return err
			}
			k.ID = m.ID
			if err := r.appendEvents(db, k, 0); err != nil {
				return err
			}
			if k.History == nil {
				k.History = []entities.HistoryEvent{}
			}
		}
		return nil
	})
}

func (r *GormKeyRepository) Update(ctx context.Context, key *entities.Key) error {
	return r.uow.Do(ctx, func(ctx context.Context) error {
		db := GetDB(ctx, r.db)
		result := db.Model(&models.Key{}).
			Where("id = ?", key.ID).
			Updates(map[string]interface{}{
				"license_key":  key.Key,
				"in_use":       key.InUse,
				"assigned_to":  key.AssignedTo,
				"invalid":      key.Invalid,
				"last_used_at": key.LastUsedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}

		var stored int64
		if err := db.Model(&models.KeyHistoryEvent{}).Where("key_id = ?", key.ID).Count(&stored).Error; err != nil {
			return err
		}
		return r.appendEvents(db, key, int(stored))
	})
}

// appendEvents inserts history entries from index from onward; history is
// append-only so earlier rows are never rewritten.
func (r *GormKeyRepository) appendEvents(db *gorm.DB, key *entities.Key, from int) error {
	if from >= len(key.History) {
		return nil
	}
	rows := make([]models.KeyHistoryEvent, 0, len(key.History)-from)
	for i := from; i < len(key.History); i++ {
		ev := key.History[i]
		rows = append(rows, models.KeyHistoryEvent{
			KeyID:      key.ID,
			Seq:        i,
			Action:     string(ev.Action),
			Timestamp:  ev.Timestamp,
			AssignedTo: ev.AssignedTo,
		})
	}
	return db.Create(&rows).Error
}

func (r *GormKeyRepository) Delete(ctx context.Context, id int64) error {
	return r.uow.Do(ctx, func(ctx context.Context) error {
		db := GetDB(ctx, r.db)
		if err := db.Where("key_id = ?", id).Delete(&models.KeyHistoryEvent{}).Error; err != nil {
			return err
		}
		result := db.Delete(&models.Key{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return nil
	})
}

func (r *GormKeyRepository) CountAvailable(ctx context.Context) (int, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&models.Key{}).
		Where("in_use = ? AND invalid = ?", false, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *GormKeyRepository) getSetting(ctx context.Context, name string) (string, bool, error) {
	var s models.AppSetting
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *GormKeyRepository) putSetting(ctx context.Context, name, value string) error {
	s := models.AppSetting{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
}

func (r *GormKeyRepository) GetState(ctx context.Context) (entities.NotificationState, error) {
	value, ok, err := r.getSetting(ctx, settingLastWarned)
	if err != nil || !ok || value == "" {
		return entities.NotificationState{}, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return entities.NotificationState{}, fmt.Errorf("parse %s: %w", settingLastWarned, err)
	}
	return entities.NotificationState{LastWarned: null.IntFrom(n)}, nil
}

func (r *GormKeyRepository) SaveState(ctx context.Context, state entities.NotificationState) error {
	value := ""
	if state.LastWarned.Valid {
		value = strconv.Itoa(state.LastWarned.Int)
	}
	return r.putSetting(ctx, settingLastWarned, value)
}

func (r *GormKeyRepository) GetConfig(ctx context.Context) (entities.NotificationConfig, error) {
	value, ok, err := r.getSetting(ctx, settingTelegramConfig)
	if err != nil {
		return entities.NotificationConfig{}, err
	}
	if !ok {
		return entities.DefaultNotificationConfig(), nil
	}
	var cfg entities.NotificationConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return entities.NotificationConfig{}, fmt.Errorf("parse %s: %w", settingTelegramConfig, err)
	}
	return cfg.WithDefaults(), nil
}

func (r *GormKeyRepository) SaveConfig(ctx context.Context, cfg entities.NotificationConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.putSetting(ctx, settingTelegramConfig, string(data))
}

func (r *GormKeyRepository) toEntity(m *models.Key) *entities.Key {
	history := make([]entities.HistoryEvent, 0, len(m.History))
	for _, ev := range m.History {
		history = append(history, entities.HistoryEvent{
			Action:     entities.HistoryAction(ev.Action),
			Timestamp:  ev.Timestamp.UTC(),
			AssignedTo: ev.AssignedTo,
		})
	}
	lastUsed := m.LastUsedAt
	if lastUsed.Valid {
		lastUsed.Time = lastUsed.Time.UTC()
	}
	return &entities.Key{
		ID:         m.ID,
		Key:        m.Key,
		InUse:      m.InUse,
		AssignedTo: m.AssignedTo,
		Invalid:    m.Invalid,
		CreatedAt:  m.CreatedAt.UTC(),
		LastUsedAt: lastUsed,
		History:    history,
	}
}

func (r *GormKeyRepository) toModel(e *entities.Key) *models.Key {
	return &models.Key{
		ID:         e.ID,
		Key:        e.Key,
		InUse:      e.InUse,
		AssignedTo: e.AssignedTo,
		Invalid:    e.Invalid,
		CreatedAt:  e.CreatedAt,
		LastUsedAt: e.LastUsedAt,
	}
}
