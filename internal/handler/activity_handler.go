package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// ActivityHandler exposes activity log endpoints.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var req dto.ActivityListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	response, err := h.service.List(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list activity logs")
	}

	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}
