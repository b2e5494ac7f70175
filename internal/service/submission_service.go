package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/clock"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/events"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/observability"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

const defaultReviewHistoryLimit = 50

// SubmissionService drives a submission from creation through review.
type SubmissionService interface {
	Create(ctx context.Context, actor policy.Actor, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Review(ctx context.Context, actor policy.Actor, id uint, payload dto.SubmissionReviewRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (dto.SubmissionResponse, error)
	ListMine(ctx context.Context, actor policy.Actor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error)
	ReviewQueue(ctx context.Context, actor policy.Actor) ([]dto.SubmissionResponse, error)
	ReviewHistory(ctx context.Context, actor policy.Actor, req dto.ReviewHistoryRequest) ([]dto.SubmissionResponse, error)
}

// SubmissionDependencies groups the collaborators of the submission engine.
// Leaderboard, Events and Activity are optional.
type SubmissionDependencies struct {
	Store       repository.Store
	Transactor  repository.Transactor
	Ledger      LedgerService
	Leaderboard LeaderboardService
	Events      events.Publisher
	Activity    ActivityRecorder
	Validator   *validator.Validate
	Calendar    *clock.Calendar
}

type submissionService struct {
	store       repository.Store
	transactor  repository.Transactor
	ledger      LedgerService
	leaderboard LeaderboardService
	events      events.Publisher
	activity    ActivityRecorder
	validator   *validator.Validate
	calendar    *clock.Calendar
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionDependencies, logger zerolog.Logger) SubmissionService {
	calendar := deps.Calendar
	if calendar == nil {
		calendar = clock.New(time.UTC)
	}
	return &submissionService{
		store:       deps.Store,
		transactor:  deps.Transactor,
		ledger:      deps.Ledger,
		leaderboard: deps.Leaderboard,
		events:      deps.Events,
		activity:    deps.Activity,
		validator:   deps.Validator,
		calendar:    calendar,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-quest-api/internal/service/submission"),
		now:         calendar.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, actor policy.Actor, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if actor.ProfileID == 0 {
		return dto.SubmissionResponse{}, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	challenge, err := s.store.Challenges.GetByID(ctx, payload.ChallengeID)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.FromStore(err, ErrChallengeNotFound)
	}

	submittable := challenge.IsSubmittable(s.calendar.Today())
	if !submittable && !policy.Allowed(actor, policy.ActionChallengeViewUnpublished, policy.Resource{ChallengeOwnerID: challenge.CreatedBy}) {
		return dto.SubmissionResponse{}, ErrChallengeNotFound
	}
	if err := policy.Authorize(actor, policy.ActionChallengeSubmit, policy.Resource{Submittable: submittable}); err != nil {
		return dto.SubmissionResponse{}, err
	}

	answers, err := matchAnswers(challenge.Items(), payload.Answers)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ChallengeID: challenge.ID,
		UserID:      actor.ProfileID,
		Answers:     datatypes.NewJSONType(answers),
		Status:      models.SubmissionStatusPending,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.store.Submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResponse{}, ErrDuplicateSubmission
		}
		return dto.SubmissionResponse{}, apperror.FromStore(err, nil)
	}

	created, err := s.store.Submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.FromStore(err, ErrSubmissionNotFound)
	}

	observability.SubmissionsCreated().WithLabelValues(string(challenge.Type)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivitySubmissionCreated,
		EntityType: "submission",
		EntityID:   uintPtr(created.ID),
		Metadata:   map[string]interface{}{"challenge_id": challenge.ID},
	})
	publishEvent(ctx, s.events, s.logger, events.TypeSubmissionCreated, map[string]interface{}{
		"submission_id": created.ID,
		"challenge_id":  challenge.ID,
		"user_id":       actor.ProfileID,
	})
	s.logger.Info().Uint("submission_id", created.ID).Uint("challenge_id", challenge.ID).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

// Review moves a pending submission to approved or rejected. The transition
// and the ledger credit of an approval commit together or not at all.
func (s *submissionService) Review(ctx context.Context, actor policy.Actor, id uint, payload dto.SubmissionReviewRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.review", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("submission.reviewer_id", int64(actor.ProfileID)),
		attribute.String("submission.decision", payload.Decision),
	))
	defer span.End()

	response, err := s.review(ctx, actor, id, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return dto.SubmissionResponse{}, err
	}
	return response, nil
}

func (s *submissionService) review(ctx context.Context, actor policy.Actor, id uint, payload dto.SubmissionReviewRequest) (dto.SubmissionResponse, error) {
	if actor.ProfileID == 0 {
		return dto.SubmissionResponse{}, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	decision := models.SubmissionStatus(strings.ToLower(strings.TrimSpace(payload.Decision)))
	if !decision.IsTerminal() {
		return dto.SubmissionResponse{}, ErrInvalidDecision
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))
	if feedback == "" {
		return dto.SubmissionResponse{}, ErrFeedbackRequired
	}

	submission, err := s.store.Submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.FromStore(err, ErrSubmissionNotFound)
	}

	if err := policy.Authorize(actor, policy.ActionSubmissionReview, policy.Resource{ChallengeOwnerID: submission.Challenge.CreatedBy}); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if submission.IsReviewed() {
		observability.ReviewConflicts().Inc()
		return dto.SubmissionResponse{}, ErrAlreadyReviewed
	}

	var corrected []models.Answer
	if len(payload.CorrectedAnswers) > 0 {
		corrected, err = applyCorrections(submission.Answers.Data(), payload.CorrectedAnswers)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	var credited *models.Transaction
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		review := repository.SubmissionReview{
			Status:     decision,
			Feedback:   feedback,
			ReviewerID: actor.ProfileID,
			ReviewedAt: s.now(),
			Answers:    corrected,
		}
		if err := store.Submissions.MarkReviewed(ctx, id, review); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrAlreadyReviewed
			}
			return apperror.FromStore(err, ErrSubmissionNotFound)
		}

		if decision != models.SubmissionStatusApproved {
			return nil
		}

		challenge, err := store.Challenges.GetByID(ctx, submission.ChallengeID)
		if err != nil {
			return apperror.FromStore(err, ErrChallengeNotFound)
		}

		entry, err := s.ledger.CreditTx(ctx, store, Credit{
			UserID:          submission.UserID,
			Coins:           challenge.CoinReward,
			Points:          challenge.PointsReward,
			RefSubmissionID: id,
			Type:            models.TransactionTypeChallengeReward,
		})
		if err != nil {
			return err
		}
		credited = &entry
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			observability.ReviewConflicts().Inc()
		}
		if decision == models.SubmissionStatusApproved && apperror.KindOf(err) != apperror.KindConflict {
			observeCreditFailure(err)
		}
		s.logger.Warn().Err(err).Uint("submission_id", id).Str("decision", string(decision)).Msg("review not committed")
		return dto.SubmissionResponse{}, err
	}

	observability.Reviews().WithLabelValues(string(decision)).Inc()
	if credited != nil {
		announceCredit(ctx, s.events, s.logger, *credited)
		if s.leaderboard != nil {
			s.leaderboard.Invalidate(ctx)
		}
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivitySubmissionReviewed,
		EntityType: "submission",
		EntityID:   uintPtr(id),
		Metadata: map[string]interface{}{
			"decision":     string(decision),
			"challenge_id": submission.ChallengeID,
			"student_id":   submission.UserID,
		},
	})
	publishEvent(ctx, s.events, s.logger, events.TypeSubmissionReviewed, map[string]interface{}{
		"submission_id": id,
		"challenge_id":  submission.ChallengeID,
		"user_id":       submission.UserID,
		"reviewer_id":   actor.ProfileID,
		"decision":      string(decision),
	})
	s.logger.Info().Uint("submission_id", id).Str("decision", string(decision)).Uint("reviewer_id", actor.ProfileID).Msg("submission reviewed")

	reviewed, err := s.store.Submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.FromStore(err, ErrSubmissionNotFound)
	}

	return dto.NewSubmissionResponse(reviewed), nil
}

// Get returns a submission to its student or to staff allowed to review it.
// Other students get NotFound so ids do not leak.
func (s *submissionService) Get(ctx context.Context, actor policy.Actor, id uint) (dto.SubmissionResponse, error) {
	if actor.ProfileID == 0 {
		return dto.SubmissionResponse{}, apperror.ErrUnauthorized
	}

	submission, err := s.store.Submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.FromStore(err, ErrSubmissionNotFound)
	}

	if submission.UserID != actor.ProfileID && !actor.Role.IsStaff() {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	resource := policy.Resource{OwnerID: submission.UserID, ChallengeOwnerID: submission.Challenge.CreatedBy}
	if err := policy.Authorize(actor, policy.ActionSubmissionView, resource); err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListMine(ctx context.Context, actor policy.Actor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error) {
	if actor.ProfileID == 0 {
		return nil, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	period, err := clock.ParsePeriod(req.Period)
	if err != nil {
		return nil, ErrInvalidPeriod
	}

	userID := actor.ProfileID
	filter := repository.SubmissionFilter{UserID: &userID, Order: repository.OrderNewestSubmitted}
	if window, ok := s.calendar.Range(period); ok {
		filter.SubmittedFrom = &window.From
		filter.SubmittedTo = &window.To
	}

	submissions, err := s.store.Submissions.List(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, nil)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) ReviewQueue(ctx context.Context, actor policy.Actor) ([]dto.SubmissionResponse, error) {
	if err := policy.Authorize(actor, policy.ActionSubmissionReviewQueue, policy.Resource{}); err != nil {
		return nil, err
	}

	filter := repository.SubmissionFilter{
		Statuses: []models.SubmissionStatus{models.SubmissionStatusPending},
		Order:    repository.OrderOldestSubmitted,
	}
	scopeToOwnChallenges(actor, &filter)

	submissions, err := s.store.Submissions.List(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, nil)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) ReviewHistory(ctx context.Context, actor policy.Actor, req dto.ReviewHistoryRequest) ([]dto.SubmissionResponse, error) {
	if err := policy.Authorize(actor, policy.ActionSubmissionReviewQueue, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultReviewHistoryLimit
	}

	filter := repository.SubmissionFilter{
		Statuses: []models.SubmissionStatus{models.SubmissionStatusApproved, models.SubmissionStatusRejected},
		Order:    repository.OrderNewestReviewed,
		Limit:    limit,
	}
	if req.StudentID > 0 {
		studentID := req.StudentID
		filter.UserID = &studentID
	}
	scopeToOwnChallenges(actor, &filter)

	submissions, err := s.store.Submissions.List(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, nil)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// scopeToOwnChallenges limits teachers to submissions on challenges they authored.
func scopeToOwnChallenges(actor policy.Actor, filter *repository.SubmissionFilter) {
	if actor.Role.IsElevated() {
		return
	}
	owner := actor.ProfileID
	filter.ChallengeOwnerID = &owner
}

// matchAnswers checks that answers cover the challenge items exactly once and
// returns them in item order with correctness still unknown.
func matchAnswers(items []models.ChallengeItem, answers []dto.AnswerRequest) ([]models.Answer, error) {
	if len(answers) != len(items) {
		return nil, apperror.Wrap(apperror.KindValidation, ErrAnswerSetMismatch.Message,
			fmt.Errorf("expected %d answers, got %d", len(items), len(answers)))
	}

	byItem := make(map[string]string, len(answers))
	for _, answer := range answers {
		itemID := strings.TrimSpace(answer.ItemID)
		if _, dup := byItem[itemID]; dup {
			return nil, apperror.Wrap(apperror.KindValidation, ErrAnswerSetMismatch.Message,
				fmt.Errorf("item %q answered twice", itemID))
		}
		byItem[itemID] = strings.TrimSpace(answer.SelectedOption)
	}

	matched := make([]models.Answer, 0, len(items))
	for _, item := range items {
		selected, ok := byItem[item.ID]
		if !ok {
			return nil, apperror.Wrap(apperror.KindValidation, ErrAnswerSetMismatch.Message,
				fmt.Errorf("item %q not answered", item.ID))
		}
		if selected == "" {
			return nil, apperror.Validation(fmt.Sprintf("item %q needs an answer", item.ID))
		}
		if item.Kind() == models.AnswerKindMultipleChoice && !item.HasOption(selected) {
			return nil, apperror.Validation(fmt.Sprintf("item %q: %q is not one of the options", item.ID, selected))
		}
		matched = append(matched, models.Answer{ItemID: item.ID, SelectedOption: selected})
	}

	return matched, nil
}

// applyCorrections sets correctness flags on a copy of the stored answers.
// Selected options never change.
func applyCorrections(stored []models.Answer, corrections []dto.AnswerCorrection) ([]models.Answer, error) {
	answers := make([]models.Answer, len(stored))
	copy(answers, stored)

	index := make(map[string]int, len(answers))
	for i, answer := range answers {
		index[answer.ItemID] = i
	}

	seen := make(map[string]struct{}, len(corrections))
	for _, correction := range corrections {
		i, ok := index[correction.ItemID]
		if !ok {
			return nil, apperror.Validation(fmt.Sprintf("item %q is not part of the submission", correction.ItemID))
		}
		if _, dup := seen[correction.ItemID]; dup {
			return nil, apperror.Validation(fmt.Sprintf("item %q corrected twice", correction.ItemID))
		}
		seen[correction.ItemID] = struct{}{}

		isCorrect := *correction.IsCorrect
		answers[i].IsCorrect = &isCorrect
	}

	return answers, nil
}
