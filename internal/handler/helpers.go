package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, apperror.Validation("invalid " + key)
	}
	return uint(parsed), nil
}

func parseQueryBool(c *fiber.Ctx, key string) (bool, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, apperror.Validation("invalid " + key)
	}
	return parsed, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// handleError renders a service error. Storage failures are logged with the
// request context before the generic response goes out.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	if apperror.KindOf(err) == apperror.KindStorage {
		requestLogger(logger, c).Error().Err(err).Msg("failed to " + action)
	}
	return utils.SendAppError(c, err)
}

func invalidPayload(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
}
