package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quest-api/internal/config"
	"github.com/noah-isme/gema-quest-api/internal/handler"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProfileHandler     *handler.ProfileHandler
	ChallengeHandler   *handler.ChallengeHandler
	SubmissionHandler  *handler.SubmissionHandler
	LedgerHandler      *handler.LedgerHandler
	LeaderboardHandler *handler.LeaderboardHandler
	ActivityHandler    *handler.ActivityHandler
	HealthChecks       map[string]handler.HealthCheckFunc
	JWTMiddleware      fiber.Handler
	ProfileMiddleware  fiber.Handler
	SubmitLimiter      fiber.Handler
	ReviewLimiter      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	// Everything below requires a verified token and a resolved profile.
	auth := []fiber.Handler{noop(deps.JWTMiddleware), noop(deps.ProfileMiddleware)}
	secured := api.Group("", auth...)

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(secured)
	}
	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(secured.Group("/leaderboard"))
	}
	if deps.ChallengeHandler != nil {
		deps.ChallengeHandler.Register(secured.Group("/challenges"))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(secured.Group("/submissions"), deps.SubmitLimiter, deps.ReviewLimiter)
	}
	if deps.LedgerHandler != nil {
		deps.LedgerHandler.Register(secured.Group("/transactions"))
	}

	admin := secured.Group("/admin", middleware.RequireRole(string(models.RoleUnderboss), string(models.RoleAdmin)))
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.RegisterAdmin(admin)
	}
	if deps.LedgerHandler != nil {
		deps.LedgerHandler.RegisterAdmin(admin)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(admin.Group("/activities"))
	}
}

func noop(handler fiber.Handler) fiber.Handler {
	if handler == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return handler
}
