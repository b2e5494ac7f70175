package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

func TestTransactionRepositoryRefIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	student := seedProfile(t, db, "student", models.RoleStudent)

	ref := uint(42)
	exists, err := repo.ExistsForSubmission(ctx, ref)
	require.NoError(t, err)
	require.False(t, exists)

	entry := models.Transaction{UserID: student.ID, Type: models.TransactionTypeChallengeReward, AmountCoins: 10, AmountPoints: 5, RefSubmissionID: &ref}
	require.NoError(t, repo.Create(ctx, &entry))

	exists, err = repo.ExistsForSubmission(ctx, ref)
	require.NoError(t, err)
	require.True(t, exists)

	again := models.Transaction{UserID: student.ID, Type: models.TransactionTypeChallengeReward, AmountCoins: 10, AmountPoints: 5, RefSubmissionID: &ref}
	require.ErrorIs(t, repo.Create(ctx, &again), gorm.ErrDuplicatedKey)
}

func TestTransactionRepositorySumsAndHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	student := seedProfile(t, db, "student", models.RoleStudent)
	other := seedProfile(t, db, "other", models.RoleStudent)

	sums, err := repo.SumByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, LedgerSums{}, sums)

	for i := 1; i <= 3; i++ {
		ref := uint(i)
		require.NoError(t, repo.Create(ctx, &models.Transaction{UserID: student.ID, Type: models.TransactionTypeChallengeReward, AmountCoins: int64(i * 10), AmountPoints: int64(i), RefSubmissionID: &ref}))
	}
	otherRef := uint(99)
	require.NoError(t, repo.Create(ctx, &models.Transaction{UserID: other.ID, Type: models.TransactionTypeChallengeReward, AmountCoins: 1, AmountPoints: 1, RefSubmissionID: &otherRef}))

	sums, err = repo.SumByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, LedgerSums{Coins: 60, Points: 6, Entries: 3}, sums)

	history, err := repo.ListByUser(ctx, student.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(30), history[0].AmountCoins, "newest entry first")
}
