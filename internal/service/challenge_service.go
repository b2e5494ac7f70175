package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/clock"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

const defaultChallengePageSize = 20

// ChallengeService manages challenge authoring and visibility.
type ChallengeService interface {
	Create(ctx context.Context, actor policy.Actor, payload dto.ChallengeCreateRequest) (dto.ChallengeResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, payload dto.ChallengeUpdateRequest) (dto.ChallengeResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (dto.ChallengeResponse, error)
	ListSubmittable(ctx context.Context, actor policy.Actor, req dto.ChallengeListRequest) (dto.ChallengeListResponse, error)
	ListMine(ctx context.Context, actor policy.Actor, req dto.ChallengeListRequest) (dto.ChallengeListResponse, error)
}

type challengeService struct {
	challenges  repository.ChallengeRepository
	validator   *validator.Validate
	calendar    *clock.Calendar
	schemas     *contentSchemas
	activity    ActivityRecorder
	titles      *bluemonday.Policy
	description *bluemonday.Policy
	logger      zerolog.Logger
}

// NewChallengeService constructs the challenge store service.
func NewChallengeService(challenges repository.ChallengeRepository, validate *validator.Validate, calendar *clock.Calendar, activity ActivityRecorder, logger zerolog.Logger) ChallengeService {
	return &challengeService{
		challenges:  challenges,
		validator:   validate,
		calendar:    calendar,
		schemas:     newContentSchemas(),
		activity:    activity,
		titles:      bluemonday.StrictPolicy(),
		description: bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "challenge_service").Logger(),
	}
}

func (s *challengeService) Create(ctx context.Context, actor policy.Actor, payload dto.ChallengeCreateRequest) (dto.ChallengeResponse, error) {
	if err := policy.Authorize(actor, policy.ActionChallengeCreate, policy.Resource{}); err != nil {
		return dto.ChallengeResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChallengeResponse{}, err
	}

	kind := models.ChallengeType(payload.Type)
	content, err := s.schemas.Parse(kind, payload.Content)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	title, description, err := s.cleanText(payload.Title, payload.Description)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	status := models.ChallengeStatusDraft
	if payload.Status != "" {
		status = models.ChallengeStatus(payload.Status)
	}

	challenge := models.Challenge{
		Title:        title,
		Description:  description,
		Type:         kind,
		Content:      datatypes.NewJSONType(content),
		PointsReward: payload.PointsReward,
		CoinReward:   payload.CoinReward,
		PublishDate:  payload.PublishDate,
		Status:       status,
		CreatedBy:    actor.ProfileID,
	}

	if err := s.challenges.Create(ctx, &challenge); err != nil {
		return dto.ChallengeResponse{}, apperror.FromStore(err, nil)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivityChallengeCreated,
		EntityType: "challenge",
		EntityID:   uintPtr(challenge.ID),
		Metadata: map[string]interface{}{
			"status":       string(challenge.Status),
			"publish_date": challenge.PublishDate,
		},
	})
	s.logger.Info().Uint("challenge_id", challenge.ID).Uint("created_by", actor.ProfileID).Msg("challenge created")

	return dto.NewChallengeResponse(challenge), nil
}

func (s *challengeService) Update(ctx context.Context, actor policy.Actor, id uint, payload dto.ChallengeUpdateRequest) (dto.ChallengeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChallengeResponse{}, err
	}

	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, apperror.FromStore(err, ErrChallengeNotFound)
	}

	if err := policy.Authorize(actor, policy.ActionChallengeEdit, policy.Resource{ChallengeOwnerID: challenge.CreatedBy}); err != nil {
		return dto.ChallengeResponse{}, err
	}

	changed := make([]string, 0, 7)

	title, description := challenge.Title, challenge.Description
	if payload.Title != nil {
		title = *payload.Title
		changed = append(changed, "title")
	}
	if payload.Description != nil {
		description = *payload.Description
		changed = append(changed, "description")
	}
	if challenge.Title, challenge.Description, err = s.cleanText(title, description); err != nil {
		return dto.ChallengeResponse{}, err
	}

	if len(payload.Content) > 0 {
		content, err := s.schemas.Parse(challenge.Type, payload.Content)
		if err != nil {
			return dto.ChallengeResponse{}, err
		}
		challenge.Content = datatypes.NewJSONType(content)
		changed = append(changed, "content_json")
	}
	if payload.PointsReward != nil {
		challenge.PointsReward = *payload.PointsReward
		changed = append(changed, "points_reward")
	}
	if payload.CoinReward != nil {
		challenge.CoinReward = *payload.CoinReward
		changed = append(changed, "coin_reward")
	}
	if payload.PublishDate != nil {
		challenge.PublishDate = *payload.PublishDate
		changed = append(changed, "publish_date")
	}
	if payload.Status != nil {
		challenge.Status = models.ChallengeStatus(*payload.Status)
		changed = append(changed, "status")
	}

	if err := s.challenges.Update(ctx, &challenge); err != nil {
		return dto.ChallengeResponse{}, apperror.FromStore(err, ErrChallengeNotFound)
	}

	updated, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, apperror.FromStore(err, ErrChallengeNotFound)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivityChallengeUpdated,
		EntityType: "challenge",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"fields": changed},
	})

	return dto.NewChallengeResponse(updated), nil
}

// Get returns a challenge visible to the actor. Challenges that are not yet
// submittable exist only for their owner and elevated staff.
func (s *challengeService) Get(ctx context.Context, actor policy.Actor, id uint) (dto.ChallengeResponse, error) {
	if actor.ProfileID == 0 {
		return dto.ChallengeResponse{}, apperror.ErrUnauthorized
	}

	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, apperror.FromStore(err, ErrChallengeNotFound)
	}

	if !s.visible(actor, challenge) {
		return dto.ChallengeResponse{}, ErrChallengeNotFound
	}

	return dto.NewChallengeResponse(challenge), nil
}

func (s *challengeService) ListSubmittable(ctx context.Context, actor policy.Actor, req dto.ChallengeListRequest) (dto.ChallengeListResponse, error) {
	if actor.ProfileID == 0 {
		return dto.ChallengeListResponse{}, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ChallengeListResponse{}, err
	}

	published := models.ChallengeStatusPublished
	filter := repository.ChallengeFilter{
		Status:              &published,
		PublishedOnOrBefore: s.calendar.Today(),
	}
	if err := s.applyPeriod(&filter, req); err != nil {
		return dto.ChallengeListResponse{}, err
	}

	return s.list(ctx, filter, req)
}

func (s *challengeService) ListMine(ctx context.Context, actor policy.Actor, req dto.ChallengeListRequest) (dto.ChallengeListResponse, error) {
	if err := policy.Authorize(actor, policy.ActionChallengeCreate, policy.Resource{}); err != nil {
		return dto.ChallengeListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ChallengeListResponse{}, err
	}

	owner := actor.ProfileID
	filter := repository.ChallengeFilter{CreatedBy: &owner}
	if err := s.applyPeriod(&filter, req); err != nil {
		return dto.ChallengeListResponse{}, err
	}

	return s.list(ctx, filter, req)
}

func (s *challengeService) list(ctx context.Context, filter repository.ChallengeFilter, req dto.ChallengeListRequest) (dto.ChallengeListResponse, error) {
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	if filter.PageSize <= 0 {
		filter.PageSize = defaultChallengePageSize
	}

	items, total, err := s.challenges.List(ctx, filter)
	if err != nil {
		return dto.ChallengeListResponse{}, apperror.FromStore(err, nil)
	}

	return dto.ChallengeListResponse{
		Items:      dto.NewChallengeResponseSlice(items),
		Pagination: paginationMeta(req.Page, filter.PageSize, total),
	}, nil
}

func (s *challengeService) applyPeriod(filter *repository.ChallengeFilter, req dto.ChallengeListRequest) error {
	period, err := clock.ParsePeriod(req.Period)
	if err != nil {
		return ErrInvalidPeriod
	}
	if window, ok := s.calendar.Range(period); ok {
		filter.PublishFrom = window.StartDate
		filter.PublishTo = window.EndDate
	}
	return nil
}

func (s *challengeService) visible(actor policy.Actor, challenge models.Challenge) bool {
	if challenge.IsSubmittable(s.calendar.Today()) {
		return true
	}
	return policy.Allowed(actor, policy.ActionChallengeViewUnpublished, policy.Resource{ChallengeOwnerID: challenge.CreatedBy})
}

func (s *challengeService) cleanText(title, description string) (string, string, error) {
	cleanTitle := strings.TrimSpace(s.titles.Sanitize(title))
	if n := utf8.RuneCountInString(cleanTitle); n < 5 || n > 255 {
		return "", "", apperror.Validation("title must be between 5 and 255 characters")
	}

	cleanDescription := strings.TrimSpace(s.description.Sanitize(description))
	if utf8.RuneCountInString(cleanDescription) < 10 {
		return "", "", apperror.Validation("description must be at least 10 characters")
	}

	return cleanTitle, cleanDescription, nil
}
