// middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"referral-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// MilestoneStreamPath is the SSE route. It lives outside /s and is exempt from
// the gateway token check: EventSource cannot set headers, so SSEAuthMiddleware
// is its only gate.
const MilestoneStreamPath = "/user/milestones/stream"

// SSEAuthMiddleware validates `token` from the query string via the auth
// service. EventSource cannot set headers, so the milestone stream cannot rely
// on the gateway-injected user context the way the /s/ routes do.
//
// Usage:
//
//	app.Get(middleware.MilestoneStreamPath, middleware.SSEAuthMiddleware(authClient), milestoneService.StreamUserMilestonesSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		if accessToken == "" {
			log.Printf("[SSEAuth] ❌ Missing token in query for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed (token prefix: %.10s...): %v", accessToken, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)
		return c.Next()
	}
}
