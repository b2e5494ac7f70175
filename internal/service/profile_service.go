package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

// Principal is the verified identity handed over by the identity provider.
type Principal struct {
	Subject  string
	FullName string
}

// ProfileService maps principals to profiles and manages them.
type ProfileService interface {
	Resolve(ctx context.Context, principal Principal) (models.Profile, error)
	Me(ctx context.Context, actor policy.Actor) (dto.ProfileResponse, error)
	UpdateName(ctx context.Context, actor policy.Actor, payload dto.ProfileUpdateRequest) (dto.ProfileResponse, error)
	SetRole(ctx context.Context, actor policy.Actor, profileID uint, payload dto.RoleUpdateRequest) (dto.ProfileResponse, error)
}

type profileService struct {
	profiles  repository.ProfileRepository
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewProfileService constructs the profile resolver.
func NewProfileService(profiles repository.ProfileRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) ProfileService {
	return &profileService{
		profiles:  profiles,
		validator: validate,
		activity:  activity,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "profile_service").Logger(),
	}
}

// Resolve returns the profile for the principal, creating a student profile on
// first sight. Concurrent first requests converge on a single row.
func (s *profileService) Resolve(ctx context.Context, principal Principal) (models.Profile, error) {
	subject := strings.TrimSpace(principal.Subject)
	if subject == "" {
		return models.Profile{}, apperror.New(apperror.KindUnauthorized, "missing principal")
	}

	profile, err := s.profiles.GetBySubject(ctx, subject)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{}, apperror.FromStore(err, nil)
	}

	created := models.Profile{
		AuthSubject: subject,
		Role:        models.RoleStudent,
		FullName:    s.cleanName(principal.FullName),
	}
	if err := s.profiles.CreateIfAbsent(ctx, &created); err != nil {
		return models.Profile{}, apperror.FromStore(err, nil)
	}

	profile, err = s.profiles.GetBySubject(ctx, subject)
	if err != nil {
		return models.Profile{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	s.logger.Info().Uint("profile_id", profile.ID).Msg("profile created on first login")
	return profile, nil
}

func (s *profileService) Me(ctx context.Context, actor policy.Actor) (dto.ProfileResponse, error) {
	if actor.ProfileID == 0 {
		return dto.ProfileResponse{}, apperror.ErrUnauthorized
	}

	profile, err := s.profiles.GetByID(ctx, actor.ProfileID)
	if err != nil {
		return dto.ProfileResponse{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) UpdateName(ctx context.Context, actor policy.Actor, payload dto.ProfileUpdateRequest) (dto.ProfileResponse, error) {
	if actor.ProfileID == 0 {
		return dto.ProfileResponse{}, apperror.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProfileResponse{}, err
	}

	name := s.cleanName(payload.FullName)
	if name == "" {
		return dto.ProfileResponse{}, apperror.Validation("full name is required")
	}

	if err := s.profiles.UpdateName(ctx, actor.ProfileID, name); err != nil {
		return dto.ProfileResponse{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	return s.Me(ctx, actor)
}

func (s *profileService) SetRole(ctx context.Context, actor policy.Actor, profileID uint, payload dto.RoleUpdateRequest) (dto.ProfileResponse, error) {
	if err := policy.Authorize(actor, policy.ActionProfileSetRole, policy.Resource{}); err != nil {
		return dto.ProfileResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProfileResponse{}, err
	}

	role, ok := models.ParseRole(payload.Role)
	if !ok {
		return dto.ProfileResponse{}, ErrInvalidRole
	}
	if profileID == actor.ProfileID {
		return dto.ProfileResponse{}, apperror.Validation("admins cannot change their own role")
	}

	current, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return dto.ProfileResponse{}, apperror.FromStore(err, ErrProfileNotFound)
	}

	if current.Role != role {
		if err := s.profiles.UpdateRole(ctx, profileID, role); err != nil {
			return dto.ProfileResponse{}, apperror.FromStore(err, ErrProfileNotFound)
		}

		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			Actor:      actor,
			Action:     models.ActivityProfileRoleChanged,
			EntityType: "profile",
			EntityID:   uintPtr(profileID),
			Metadata: map[string]interface{}{
				"from": string(current.Role),
				"to":   string(role),
			},
		})
		s.logger.Info().Uint("profile_id", profileID).Str("role", string(role)).Msg("profile role changed")
		current.Role = role
	}

	return dto.NewProfileResponse(current), nil
}

func (s *profileService) cleanName(raw string) string {
	name := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	if runes := []rune(name); len(runes) > 255 {
		name = string(runes[:255])
	}
	return name
}
