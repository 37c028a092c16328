// middleware/session.go
package middleware

import (
	"context"
	"log"
	"time"

	"referral-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// SessionTrackingMiddleware records the caller's IP against their user ID so
// the IP-dedup gate can spot multiple referral activations coming from the
// same physical actor. Tracking failures never block the request.
func SessionTrackingMiddleware(sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID != "" {
			ip := c.Get("X-Forwarded-For")
			if ip == "" {
				ip = c.IP()
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := sessions.RecordIP(ctx, userID, ip); err != nil {
				log.Printf("⚠️ [SESSION] Failed to record IP for %s: %v", userID, err)
			}
			cancel()
		}
		return c.Next()
	}
}
