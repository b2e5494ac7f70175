package dto

import (
	"time"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// ProfileResponse is the caller's own view of a profile.
type ProfileResponse struct {
	ID          uint      `json:"id"`
	Role        string    `json:"role"`
	FullName    string    `json:"full_name"`
	CoinsTotal  int64     `json:"coins_total"`
	PointsTotal int64     `json:"points_total"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileLite summarizes a profile inside other resources.
type ProfileLite struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
}

// ProfileUpdateRequest changes the caller's display name.
type ProfileUpdateRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=255"`
}

// RoleUpdateRequest assigns a role to a profile.
type RoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=student teacher underboss admin"`
}

// LeaderboardEntry is one ranked profile.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	ProfileID   uint   `json:"profile_id"`
	FullName    string `json:"full_name"`
	CoinsTotal  int64  `json:"coins_total"`
	PointsTotal int64  `json:"points_total"`
}

// LeaderboardResponse wraps the ranking with cache metadata.
type LeaderboardResponse struct {
	Items       []LeaderboardEntry `json:"items"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

// NewProfileResponse converts a profile model into its DTO.
func NewProfileResponse(model models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          model.ID,
		Role:        string(model.Role),
		FullName:    model.FullName,
		CoinsTotal:  model.CoinsTotal,
		PointsTotal: model.PointsTotal,
		CreatedAt:   model.CreatedAt,
	}
}

// NewProfileLite converts a profile into its summary.
func NewProfileLite(model models.Profile) ProfileLite {
	return ProfileLite{ID: model.ID, FullName: model.FullName}
}
