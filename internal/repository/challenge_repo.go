package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// ChallengeFilter narrows challenge listings. Date bounds are inclusive civic dates.
type ChallengeFilter struct {
	Status              *models.ChallengeStatus
	CreatedBy           *uint
	PublishedOnOrBefore string
	PublishFrom         string
	PublishTo           string
	Page                int
	PageSize            int
}

// ChallengeRepository defines persistence operations for challenges.
type ChallengeRepository interface {
	List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, int64, error)
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	Create(ctx context.Context, challenge *models.Challenge) error
	Update(ctx context.Context, challenge *models.Challenge) error
}

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository instantiates a GORM-backed repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Challenge{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.PublishedOnOrBefore != "" {
		query = query.Where("publish_date <= ?", filter.PublishedOnOrBefore)
	}
	if filter.PublishFrom != "" {
		query = query.Where("publish_date >= ?", filter.PublishFrom)
	}
	if filter.PublishTo != "" {
		query = query.Where("publish_date <= ?", filter.PublishTo)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var challenges []models.Challenge
	if err := query.Order("publish_date DESC").Order("id DESC").Find(&challenges).Error; err != nil {
		return nil, 0, err
	}

	return challenges, total, nil
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}

	return challenge, nil
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// Update persists the editable columns. Ownership and creation time never change.
func (r *challengeRepository) Update(ctx context.Context, challenge *models.Challenge) error {
	result := r.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Select("title", "description", "type", "content_json", "points_reward", "coin_reward", "publish_date", "status", "updated_at").
		Updates(challenge)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
