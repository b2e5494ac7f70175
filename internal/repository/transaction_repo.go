package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// LedgerSums is the aggregate of a profile's ledger entries.
type LedgerSums struct {
	Coins   int64
	Points  int64
	Entries int64
}

// TransactionRepository persists the append-only reward ledger.
type TransactionRepository interface {
	Create(ctx context.Context, entry *models.Transaction) error
	ExistsForSubmission(ctx context.Context, submissionID uint) (bool, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)
	SumByUser(ctx context.Context, userID uint) (LedgerSums, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository constructs the ledger repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, entry *models.Transaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *transactionRepository) ExistsForSubmission(ctx context.Context, submissionID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("ref_submission_id = ?", submissionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.Transaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *transactionRepository) SumByUser(ctx context.Context, userID uint) (LedgerSums, error) {
	var sums LedgerSums
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount_coins), 0) AS coins, COALESCE(SUM(amount_points), 0) AS points, COUNT(*) AS entries").
		Where("user_id = ?", userID).
		Scan(&sums).Error
	if err != nil {
		return LedgerSums{}, err
	}

	return sums, nil
}
