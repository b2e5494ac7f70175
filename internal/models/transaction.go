package models

import "time"

// TransactionTypeChallengeReward marks credits earned by an approved submission.
const TransactionTypeChallengeReward = "challenge_reward"

// Transaction is an immutable ledger entry. RefSubmissionID is unique so a submission credits at most once.
type Transaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Type            string    `gorm:"size:32;not null" json:"type"`
	AmountCoins     int64     `gorm:"not null" json:"amount_coins"`
	AmountPoints    int64     `gorm:"not null" json:"amount_points"`
	RefSubmissionID *uint     `gorm:"uniqueIndex" json:"ref_submission_id"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
