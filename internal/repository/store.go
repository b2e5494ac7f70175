package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one database handle.
type Store struct {
	Profiles     ProfileRepository
	Challenges   ChallengeRepository
	Submissions  SubmissionRepository
	Transactions TransactionRepository
	Activities   ActivityLogRepository
}

// NewStore binds every repository to db, which may be a transaction.
func NewStore(db *gorm.DB) Store {
	return Store{
		Profiles:     NewProfileRepository(db),
		Challenges:   NewChallengeRepository(db),
		Submissions:  NewSubmissionRepository(db),
		Transactions: NewTransactionRepository(db),
		Activities:   NewActivityLogRepository(db),
	}
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor builds a transactor on top of GORM transactions.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (t *gormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewStore(tx))
	})
}
