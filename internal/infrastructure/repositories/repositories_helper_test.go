package repositories

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	domainRepos "keystock.backend/internal/domain/repositories"
	"keystock.backend/internal/infrastructure/filestore"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

type keyStore interface {
	domainRepos.KeyRepository
	domainRepos.NotificationRepository
}

type storeFactory func(t *testing.T) keyStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T) keyStore {
			path := filepath.Join(t.TempDir(), "db.json")
			return NewFileKeyRepository(filestore.Open(context.Background(), path))
		},
		"gorm": func(t *testing.T) keyStore {
			db := newTestDB(t)
			require.NoError(t, AutoMigrate(db))
			return NewGormKeyRepository(db)
		},
	}
}
