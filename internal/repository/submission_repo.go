package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// ErrStaleState is returned when a conditional transition matched no row.
var ErrStaleState = errors.New("submission is no longer pending")

// SubmissionOrder selects the sort order of a listing.
type SubmissionOrder int

const (
	// OrderNewestSubmitted lists the latest submissions first.
	OrderNewestSubmitted SubmissionOrder = iota
	// OrderOldestSubmitted lists the review queue first in, first out.
	OrderOldestSubmitted
	// OrderNewestReviewed lists the latest reviews first.
	OrderNewestReviewed
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	ChallengeID      *uint
	UserID           *uint
	ChallengeOwnerID *uint
	Statuses         []models.SubmissionStatus
	SubmittedFrom    *time.Time
	SubmittedTo      *time.Time
	Order            SubmissionOrder
	Limit            int
}

// SubmissionReview carries the columns written by a review.
// A nil Answers keeps the stored answers.
type SubmissionReview struct {
	Status     models.SubmissionStatus
	Feedback   string
	ReviewerID uint
	ReviewedAt time.Time
	Answers    []models.Answer
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByChallengeAndUser(ctx context.Context, challengeID, userID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	MarkReviewed(ctx context.Context, id uint, review SubmissionReview) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Challenge").
		Preload("Student").
		Preload("Reviewer")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.ChallengeOwnerID != nil {
		query = query.
			Joins("JOIN challenges ON challenges.id = submissions.challenge_id").
			Where("challenges.created_by = ?", *filter.ChallengeOwnerID)
	}

	if filter.ChallengeID != nil {
		query = query.Where("submissions.challenge_id = ?", *filter.ChallengeID)
	}

	if filter.UserID != nil {
		query = query.Where("submissions.user_id = ?", *filter.UserID)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("submissions.status IN ?", filter.Statuses)
	}

	// Instants are stored in UTC; bounds are normalised so text-backed stores compare correctly.
	if filter.SubmittedFrom != nil {
		query = query.Where("submissions.submitted_at >= ?", filter.SubmittedFrom.UTC())
	}

	if filter.SubmittedTo != nil {
		query = query.Where("submissions.submitted_at <= ?", filter.SubmittedTo.UTC())
	}

	switch filter.Order {
	case OrderOldestSubmitted:
		query = query.Order("submissions.submitted_at ASC").Order("submissions.id ASC")
	case OrderNewestReviewed:
		query = query.Order("submissions.reviewed_at DESC").Order("submissions.id DESC")
	default:
		query = query.Order("submissions.submitted_at DESC").Order("submissions.id DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, "submissions.id = ?", id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByChallengeAndUser(ctx context.Context, challengeID, userID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("submissions.challenge_id = ?", challengeID).
		Where("submissions.user_id = ?", userID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// Create inserts the submission row only; associations are never upserted.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Challenge", "Student", "Reviewer").Create(submission).Error
}

// MarkReviewed moves a pending submission to its terminal state. The status
// guard makes concurrent reviews race safely: only one of them matches a row.
func (r *submissionRepository) MarkReviewed(ctx context.Context, id uint, review SubmissionReview) error {
	updates := map[string]interface{}{
		"status":        review.Status,
		"feedback_text": review.Feedback,
		"reviewed_by":   review.ReviewerID,
		"reviewed_at":   review.ReviewedAt.UTC(),
	}
	if review.Answers != nil {
		updates["answers_json"] = datatypes.NewJSONType(review.Answers)
	}

	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
