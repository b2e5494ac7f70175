package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// ChallengeCreateRequest is the payload for authoring a challenge.
// Content is validated against the JSON schema of its type.
type ChallengeCreateRequest struct {
	Title        string          `json:"title" validate:"required,min=5,max=255"`
	Description  string          `json:"description" validate:"required,min=10"`
	Type         string          `json:"type" validate:"required,oneof=fill_blanks_prepositions"`
	Content      json.RawMessage `json:"content_json" validate:"required"`
	PointsReward int64           `json:"points_reward" validate:"required,gte=1,lte=1000"`
	CoinReward   int64           `json:"coin_reward" validate:"required,gte=1,lte=1000"`
	PublishDate  string          `json:"publish_date" validate:"required,datetime=2006-01-02"`
	Status       string          `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// ChallengeUpdateRequest is a partial update of a challenge.
type ChallengeUpdateRequest struct {
	Title        *string         `json:"title" validate:"omitempty,min=5,max=255"`
	Description  *string         `json:"description" validate:"omitempty,min=10"`
	Content      json.RawMessage `json:"content_json"`
	PointsReward *int64          `json:"points_reward" validate:"omitempty,gte=1,lte=1000"`
	CoinReward   *int64          `json:"coin_reward" validate:"omitempty,gte=1,lte=1000"`
	PublishDate  *string         `json:"publish_date" validate:"omitempty,datetime=2006-01-02"`
	Status       *string         `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// ChallengeListRequest filters challenge listings.
type ChallengeListRequest struct {
	Period   string `query:"period" validate:"omitempty,oneof=all week month year"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// ChallengeItemResponse is one blank of a challenge.
type ChallengeItemResponse struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	AnswerType string   `json:"answer_type"`
}

// ChallengeContentResponse is the typed content of a challenge.
type ChallengeContentResponse struct {
	Instructions string                  `json:"instructions"`
	Items        []ChallengeItemResponse `json:"items"`
}

// ChallengeResponse is returned when viewing a challenge.
type ChallengeResponse struct {
	ID           uint                     `json:"id"`
	Title        string                   `json:"title"`
	Description  string                   `json:"description"`
	Type         string                   `json:"type"`
	Content      ChallengeContentResponse `json:"content_json"`
	PointsReward int64                    `json:"points_reward"`
	CoinReward   int64                    `json:"coin_reward"`
	PublishDate  string                   `json:"publish_date"`
	Status       string                   `json:"status"`
	CreatedBy    uint                     `json:"created_by"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// ChallengeListResponse wraps a page of challenges.
type ChallengeListResponse struct {
	Items      []ChallengeResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// ChallengeLite summarizes a challenge inside submission responses.
type ChallengeLite struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	PublishDate  string `json:"publish_date"`
	PointsReward int64  `json:"points_reward"`
	CoinReward   int64  `json:"coin_reward"`
	CreatedBy    uint   `json:"created_by"`
}

// NewChallengeResponse converts a challenge model into its DTO.
func NewChallengeResponse(model models.Challenge) ChallengeResponse {
	content := model.Content.Data()
	items := make([]ChallengeItemResponse, 0, len(content.Items))
	for _, item := range content.Items {
		options := item.Options
		if options == nil {
			options = []string{}
		}
		items = append(items, ChallengeItemResponse{
			ID:         item.ID,
			Text:       item.Text,
			Options:    options,
			AnswerType: string(item.Kind()),
		})
	}

	return ChallengeResponse{
		ID:           model.ID,
		Title:        model.Title,
		Description:  model.Description,
		Type:         string(model.Type),
		Content:      ChallengeContentResponse{Instructions: content.Instructions, Items: items},
		PointsReward: model.PointsReward,
		CoinReward:   model.CoinReward,
		PublishDate:  model.PublishDate,
		Status:       string(model.Status),
		CreatedBy:    model.CreatedBy,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewChallengeResponseSlice converts a list of challenges.
func NewChallengeResponseSlice(items []models.Challenge) []ChallengeResponse {
	responses := make([]ChallengeResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewChallengeResponse(item))
	}
	return responses
}

// NewChallengeLite converts a challenge into its summary.
func NewChallengeLite(model models.Challenge) ChallengeLite {
	return ChallengeLite{
		ID:           model.ID,
		Title:        model.Title,
		PublishDate:  model.PublishDate,
		PointsReward: model.PointsReward,
		CoinReward:   model.CoinReward,
		CreatedBy:    model.CreatedBy,
	}
}
