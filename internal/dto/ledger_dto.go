package dto

import (
	"time"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// TransactionHistoryRequest selects whose ledger to read.
type TransactionHistoryRequest struct {
	UserID uint `query:"user_id"`
	Limit  int  `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID              uint      `json:"id"`
	UserID          uint      `json:"user_id"`
	Type            string    `json:"type"`
	AmountCoins     int64     `json:"amount_coins"`
	AmountPoints    int64     `json:"amount_points"`
	RefSubmissionID *uint     `json:"ref_submission_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// BalanceResponse is a profile's running totals.
type BalanceResponse struct {
	CoinsTotal  int64 `json:"coins_total"`
	PointsTotal int64 `json:"points_total"`
}

// TransactionHistoryResponse wraps recent ledger entries and the balance.
type TransactionHistoryResponse struct {
	UserID  uint                  `json:"user_id"`
	Balance BalanceResponse       `json:"balance"`
	Items   []TransactionResponse `json:"items"`
}

// ReconcileReport compares a profile's totals with its ledger.
type ReconcileReport struct {
	UserID        uint  `json:"user_id"`
	Consistent    bool  `json:"consistent"`
	Repaired      bool  `json:"repaired"`
	Entries       int64 `json:"entries"`
	LedgerCoins   int64 `json:"ledger_coins"`
	LedgerPoints  int64 `json:"ledger_points"`
	ProfileCoins  int64 `json:"profile_coins"`
	ProfilePoints int64 `json:"profile_points"`
}

// NewTransactionResponse converts a ledger entry into its DTO.
func NewTransactionResponse(model models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              model.ID,
		UserID:          model.UserID,
		Type:            model.Type,
		AmountCoins:     model.AmountCoins,
		AmountPoints:    model.AmountPoints,
		RefSubmissionID: model.RefSubmissionID,
		CreatedAt:       model.CreatedAt,
	}
}
