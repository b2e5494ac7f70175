package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// ProfileRepository provides access to profiles and their balances.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (models.Profile, error)
	GetByIDForUpdate(ctx context.Context, id uint) (models.Profile, error)
	GetBySubject(ctx context.Context, subject string) (models.Profile, error)
	CreateIfAbsent(ctx context.Context, profile *models.Profile) error
	UpdateName(ctx context.Context, id uint, fullName string) error
	UpdateRole(ctx context.Context, id uint, role models.Role) error
	IncrementBalances(ctx context.Context, id uint, coins, points int64) error
	SetBalances(ctx context.Context, id uint, coins, points int64) error
	Leaderboard(ctx context.Context, limit int) ([]models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

// GetByIDForUpdate loads the profile and holds its row lock until the
// surrounding transaction ends. Stores without row locks ignore the clause.
func (r *profileRepository) GetByIDForUpdate(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&profile, id).Error; err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

func (r *profileRepository) GetBySubject(ctx context.Context, subject string) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("auth_subject = ?", subject).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

// CreateIfAbsent inserts the profile unless one already exists for its subject.
// Concurrent first logins for the same subject both succeed; callers reload by subject.
func (r *profileRepository) CreateIfAbsent(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "auth_subject"}}, DoNothing: true}).
		Create(profile).Error
}

func (r *profileRepository) UpdateName(ctx context.Context, id uint, fullName string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"full_name": fullName})
}

func (r *profileRepository) UpdateRole(ctx context.Context, id uint, role models.Role) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"role": role})
}

// IncrementBalances adds to the running totals with a server-side expression so
// concurrent credits never lose an update.
func (r *profileRepository) IncrementBalances(ctx context.Context, id uint, coins, points int64) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"coins_total":  gorm.Expr("coins_total + ?", coins),
		"points_total": gorm.Expr("points_total + ?", points),
	})
}

func (r *profileRepository) SetBalances(ctx context.Context, id uint, coins, points int64) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"coins_total":  coins,
		"points_total": points,
	})
}

func (r *profileRepository) Leaderboard(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).
		Order("coins_total DESC").
		Order("points_total DESC").
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *profileRepository) updateColumns(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
