package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// LeaderboardHandler serves the coin ranking.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches the ranking route.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.top)
}

func (h *LeaderboardHandler) top(c *fiber.Ctx) error {
	response, err := h.service.Top(c.UserContext(), middleware.ActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "load leaderboard")
	}

	if response.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return utils.SendSuccess(c, "leaderboard retrieved", response)
}
