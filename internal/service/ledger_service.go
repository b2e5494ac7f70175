package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/events"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/observability"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Credit describes a reward to append to a profile's ledger.
type Credit struct {
	UserID          uint
	Coins           int64
	Points          int64
	RefSubmissionID uint
	Type            string
}

// LedgerService appends rewards and keeps profile balances equal to the ledger.
type LedgerService interface {
	// Credit runs CreditTx in its own transaction.
	Credit(ctx context.Context, credit Credit) (models.Transaction, error)
	// CreditTx appends the entry and bumps the balances using the caller's transaction.
	CreditTx(ctx context.Context, store repository.Store, credit Credit) (models.Transaction, error)
	History(ctx context.Context, actor policy.Actor, req dto.TransactionHistoryRequest) (dto.TransactionHistoryResponse, error)
	Reconcile(ctx context.Context, actor policy.Actor, userID uint, repair bool) (dto.ReconcileReport, error)
}

type ledgerService struct {
	store      repository.Store
	transactor repository.Transactor
	validator  *validator.Validate
	events     events.Publisher
	activity   ActivityRecorder
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewLedgerService constructs the reward ledger.
func NewLedgerService(store repository.Store, transactor repository.Transactor, validate *validator.Validate, publisher events.Publisher, activity ActivityRecorder, logger zerolog.Logger) LedgerService {
	return &ledgerService{
		store:      store,
		transactor: transactor,
		validator:  validate,
		events:     publisher,
		activity:   activity,
		logger:     logger.With().Str("component", "ledger_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-quest-api/internal/service/ledger"),
	}
}

func (s *ledgerService) Credit(ctx context.Context, credit Credit) (models.Transaction, error) {
	var entry models.Transaction
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		entry, err = s.CreditTx(ctx, store, credit)
		return err
	})
	if err != nil {
		observeCreditFailure(err)
		return models.Transaction{}, err
	}

	announceCredit(ctx, s.events, s.logger, entry)
	return entry, nil
}

func (s *ledgerService) CreditTx(ctx context.Context, store repository.Store, credit Credit) (models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.credit", trace.WithAttributes(
		attribute.Int64("ledger.user_id", int64(credit.UserID)),
		attribute.Int64("ledger.ref_submission_id", int64(credit.RefSubmissionID)),
		attribute.Int64("ledger.coins", credit.Coins),
		attribute.Int64("ledger.points", credit.Points),
	))
	defer span.End()

	entry, err := s.credit(ctx, store, credit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return models.Transaction{}, err
	}
	return entry, nil
}

func (s *ledgerService) credit(ctx context.Context, store repository.Store, credit Credit) (models.Transaction, error) {
	if credit.UserID == 0 || credit.Coins <= 0 || credit.Points <= 0 {
		return models.Transaction{}, ErrInvalidAmount
	}

	if credit.RefSubmissionID != 0 {
		exists, err := store.Transactions.ExistsForSubmission(ctx, credit.RefSubmissionID)
		if err != nil {
			return models.Transaction{}, apperror.FromStore(err, nil)
		}
		if exists {
			return models.Transaction{}, ErrAlreadyCredited
		}
	}

	if _, err := store.Profiles.GetByID(ctx, credit.UserID); err != nil {
		return models.Transaction{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	kind := credit.Type
	if kind == "" {
		kind = models.TransactionTypeChallengeReward
	}

	entry := models.Transaction{
		UserID:       credit.UserID,
		Type:         kind,
		AmountCoins:  credit.Coins,
		AmountPoints: credit.Points,
	}
	if credit.RefSubmissionID != 0 {
		entry.RefSubmissionID = uintPtr(credit.RefSubmissionID)
	}

	if err := store.Transactions.Create(ctx, &entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Transaction{}, ErrAlreadyCredited
		}
		return models.Transaction{}, apperror.FromStore(err, nil)
	}

	if err := store.Profiles.IncrementBalances(ctx, credit.UserID, credit.Coins, credit.Points); err != nil {
		return models.Transaction{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	return entry, nil
}

func (s *ledgerService) History(ctx context.Context, actor policy.Actor, req dto.TransactionHistoryRequest) (dto.TransactionHistoryResponse, error) {
	if actor.ProfileID == 0 {
		return dto.TransactionHistoryResponse{}, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.TransactionHistoryResponse{}, err
	}

	userID := req.UserID
	if userID == 0 {
		userID = actor.ProfileID
	}
	if err := policy.Authorize(actor, policy.ActionLedgerView, policy.Resource{OwnerID: userID}); err != nil {
		return dto.TransactionHistoryResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	profile, err := s.store.Profiles.GetByID(ctx, userID)
	if err != nil {
		return dto.TransactionHistoryResponse{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	entries, err := s.store.Transactions.ListByUser(ctx, userID, limit)
	if err != nil {
		return dto.TransactionHistoryResponse{}, apperror.FromStore(err, nil)
	}

	items := make([]dto.TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewTransactionResponse(entry))
	}

	return dto.TransactionHistoryResponse{
		UserID: userID,
		Balance: dto.BalanceResponse{
			CoinsTotal:  profile.CoinsTotal,
			PointsTotal: profile.PointsTotal,
		},
		Items: items,
	}, nil
}

// Reconcile compares the running totals with the ledger sums and, when asked,
// rewrites the totals to match the ledger. The profile row stays locked while
// the comparison runs so concurrent credits cannot slip in between.
func (s *ledgerService) Reconcile(ctx context.Context, actor policy.Actor, userID uint, repair bool) (dto.ReconcileReport, error) {
	if err := policy.Authorize(actor, policy.ActionLedgerReconcile, policy.Resource{OwnerID: userID}); err != nil {
		return dto.ReconcileReport{}, err
	}

	var report dto.ReconcileReport
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		profile, err := store.Profiles.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return apperror.FromStore(err, ErrProfileNotFound)
		}

		sums, err := store.Transactions.SumByUser(ctx, userID)
		if err != nil {
			return apperror.FromStore(err, nil)
		}

		report = dto.ReconcileReport{
			UserID:        userID,
			Entries:       sums.Entries,
			LedgerCoins:   sums.Coins,
			LedgerPoints:  sums.Points,
			ProfileCoins:  profile.CoinsTotal,
			ProfilePoints: profile.PointsTotal,
		}
		report.Consistent = sums.Coins == profile.CoinsTotal && sums.Points == profile.PointsTotal

		if report.Consistent || !repair {
			return nil
		}

		if err := store.Profiles.SetBalances(ctx, userID, sums.Coins, sums.Points); err != nil {
			return apperror.FromStore(err, ErrProfileNotFound)
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return dto.ReconcileReport{}, err
	}

	if !report.Consistent {
		s.logger.Warn().
			Uint("profile_id", userID).
			Int64("ledger_coins", report.LedgerCoins).
			Int64("profile_coins", report.ProfileCoins).
			Int64("ledger_points", report.LedgerPoints).
			Int64("profile_points", report.ProfilePoints).
			Bool("repaired", report.Repaired).
			Msg("profile balances drifted from ledger")
	}

	if report.Repaired {
		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			Actor:      actor,
			Action:     models.ActivityLedgerReconciled,
			EntityType: "profile",
			EntityID:   uintPtr(userID),
			Metadata: map[string]interface{}{
				"from_coins":  report.ProfileCoins,
				"from_points": report.ProfilePoints,
				"to_coins":    report.LedgerCoins,
				"to_points":   report.LedgerPoints,
			},
		})
	}

	return report, nil
}

// announceCredit publishes metrics and the reward event for a committed entry.
func announceCredit(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, entry models.Transaction) {
	observability.LedgerCredits().WithLabelValues("ok").Inc()
	observability.LedgerCoins().Add(float64(entry.AmountCoins))
	observability.LedgerPoints().Add(float64(entry.AmountPoints))

	data := map[string]interface{}{
		"transaction_id": entry.ID,
		"user_id":        entry.UserID,
		"amount_coins":   entry.AmountCoins,
		"amount_points":  entry.AmountPoints,
	}
	if entry.RefSubmissionID != nil {
		data["ref_submission_id"] = *entry.RefSubmissionID
	}
	publishEvent(ctx, publisher, logger, events.TypeRewardCredited, data)
}

func observeCreditFailure(err error) {
	outcome := "error"
	if errors.Is(err, ErrAlreadyCredited) {
		outcome = "duplicate"
	}
	observability.LedgerCredits().WithLabelValues(outcome).Inc()
}

func publishEvent(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, eventType string, data map[string]interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, eventType, data); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
