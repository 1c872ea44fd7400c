package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"keystock.backend/internal/infrastructure/models"
)

func TestUnitOfWork_DoCommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, AutoMigrate(db))
	u := &UnitOfWorkImpl{db: db}

	err := u.Do(context.Background(), func(ctx context.Context) error {
		return GetDB(ctx, db).Create(&models.AppSetting{Name: "a", Value: "1"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.AppSetting{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	err = u.Do(context.Background(), func(ctx context.Context) error {
		if err := GetDB(ctx, db).Create(&models.AppSetting{Name: "b", Value: "2"}).Error; err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.Error(t, err)

	require.NoError(t, db.Model(&models.AppSetting{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "second insert must be rolled back")
}

func TestUnitOfWork_NestedDoReusesTransaction(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, AutoMigrate(db))
	u := &UnitOfWorkImpl{db: db}

	err := u.Do(context.Background(), func(outer context.Context) error {
		return u.Do(outer, func(inner context.Context) error {
			require.Same(t, GetDB(outer, db), GetDB(inner, db))
			return nil
		})
	})
	require.NoError(t, err)
}
