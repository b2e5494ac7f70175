package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Challenge{},
		&models.Submission{},
		&models.Transaction{},
		&models.ActivityLog{},
	))
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, subject string, role models.Role) models.Profile {
	t.Helper()
	profile := models.Profile{AuthSubject: subject, Role: role, FullName: subject}
	require.NoError(t, db.Create(&profile).Error)
	return profile
}

func TestTransactorCommitsAndRollsBack(t *testing.T) {
	db := setupTestDB(t)
	profile := seedProfile(t, db, "student-1", models.RoleStudent)
	tx := NewTransactor(db)
	ctx := context.Background()

	err := tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		return store.Profiles.IncrementBalances(ctx, profile.ID, 5, 3)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		require.NoError(t, store.Profiles.IncrementBalances(ctx, profile.ID, 100, 100))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := NewProfileRepository(db).GetByID(ctx, profile.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), stored.CoinsTotal)
	require.Equal(t, int64(3), stored.PointsTotal)
}
