package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Key struct {
	ID         int64       `gorm:"primaryKey;autoIncrement"`
	Key        string      `gorm:"column:license_key;type:varchar(29);not null;index"`
	InUse      bool        `gorm:"not null;default:false;index:idx_license_keys_available,priority:1"`
	AssignedTo null.String `gorm:"type:text"`
	Invalid    bool        `gorm:"not null;default:false;index:idx_license_keys_available,priority:2"`
	CreatedAt  time.Time   `gorm:"not null"`
	LastUsedAt null.Time

	History []KeyHistoryEvent `gorm:"foreignKey:KeyID"`
}

func (Key) TableName() string {
	return "license_keys"
}

// KeyHistoryEvent is one row of a key's append-only history; Seq keeps
// insertion order within the key.
type KeyHistoryEvent struct {
	ID         int64       `gorm:"primaryKey;autoIncrement"`
	KeyID      int64       `gorm:"not null;index"`
	Seq        int         `gorm:"not null"`
	Action     string      `gorm:"type:varchar(16);not null"`
	Timestamp  time.Time   `gorm:"not null"`
	AssignedTo null.String `gorm:"type:text"`
}

func (KeyHistoryEvent) TableName() string {
	return "key_history_events"
}

// AppSetting stores process-wide values such as the notifier watermark
type AppSetting struct {
	Name      string `gorm:"type:varchar(64);primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (AppSetting) TableName() string {
	return "app_settings"
}

// All lists every model managed by the SQL store
func All() []interface{} {
	return []interface{}{&Key{}, &KeyHistoryEvent{}, &AppSetting{}}
}
