package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/observability"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

const leaderboardCacheKey = "leaderboard:top"

// LeaderboardService ranks profiles by coins, then points.
type LeaderboardService interface {
	Top(ctx context.Context, actor policy.Actor) (dto.LeaderboardResponse, error)
	Invalidate(ctx context.Context)
}

type leaderboardService struct {
	profiles repository.ProfileRepository
	cache    *redis.Client
	cacheTTL time.Duration
	size     int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewLeaderboardService builds the ranking read model. A nil cache disables caching.
func NewLeaderboardService(profiles repository.ProfileRepository, cache *redis.Client, ttl time.Duration, size int, logger zerolog.Logger) LeaderboardService {
	if size <= 0 {
		size = 50
	}
	return &leaderboardService{
		profiles: profiles,
		cache:    cache,
		cacheTTL: ttl,
		size:     size,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
		now:      time.Now,
	}
}

func (s *leaderboardService) Top(ctx context.Context, actor policy.Actor) (dto.LeaderboardResponse, error) {
	if actor.ProfileID == 0 {
		return dto.LeaderboardResponse{}, apperror.ErrUnauthorized
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, leaderboardCacheKey).Result(); err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.LeaderboardCache().WithLabelValues("hit").Inc()
				response.CacheHit = true
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
	}

	profiles, err := s.profiles.Leaderboard(ctx, s.size)
	if err != nil {
		return dto.LeaderboardResponse{}, apperror.FromStore(err, nil)
	}

	entries := make([]dto.LeaderboardEntry, 0, len(profiles))
	for i, profile := range profiles {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:        i + 1,
			ProfileID:   profile.ID,
			FullName:    profile.FullName,
			CoinsTotal:  profile.CoinsTotal,
			PointsTotal: profile.PointsTotal,
		})
	}

	response := dto.LeaderboardResponse{Items: entries, GeneratedAt: s.now().UTC()}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, leaderboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached ranking after balances change.
func (s *leaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}
