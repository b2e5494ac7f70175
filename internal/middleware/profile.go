package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// ProfileResolver maps a verified principal to its profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, principal service.Principal) (models.Profile, error)
}

// ResolveProfile loads (or lazily creates) the caller's profile after JWT validation.
func ResolveProfile(resolver ProfileResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, _ := c.Locals(LocalAuthSubject).(string)
		if subject == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		name, _ := c.Locals(LocalAuthName).(string)

		profile, err := resolver.Resolve(c.UserContext(), service.Principal{Subject: subject, FullName: name})
		if err != nil {
			return utils.SendAppError(c, err)
		}

		c.Locals(LocalProfile, profile)
		c.Locals(LocalUserID, profile.ID)
		c.Locals(LocalUserRole, string(profile.Role))

		return c.Next()
	}
}

// ActorFromContext returns the acting profile of the request. Anonymous
// requests yield the zero actor, which every policy rejects as unauthorized.
func ActorFromContext(c *fiber.Ctx) policy.Actor {
	profile, ok := c.Locals(LocalProfile).(models.Profile)
	if !ok {
		return policy.Actor{}
	}
	return policy.ActorFromProfile(profile)
}
