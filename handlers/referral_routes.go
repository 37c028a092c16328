// handlers/referral_routes.go
package handlers

import (
	"strconv"

	"referral-reward-system/middleware"
	"referral-reward-system/models"
	"referral-reward-system/services"
	"referral-reward-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func SetupReferralRoutes(
	app *fiber.App,
	activationService *services.ActivationService,
	subscriptionService *services.SubscriptionService,
	milestoneService *services.MilestoneService,
	tierEvaluator *services.TierEvaluator,
	sessionService *services.SessionService,
	authClient *services.AuthServiceClient,
) {
	// 🔐 Secured routes — require user context forwarded by the gateway.
	securedGroup := app.Group("/s",
		middleware.UserContextMiddleware(),
		middleware.SessionTrackingMiddleware(sessionService),
	)

	// Qualifying-event ingestion: journal/tarot/ritual endpoints call this after
	// the user's primary action succeeds. The activation check is detached — it
	// must never fail or slow the caller, so we 202 immediately.
	securedGroup.Post("/events/qualifying", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			EventType models.ActivationEvent `json:"event_type"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if !models.ValidActivationEvent(req.EventType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown event_type"})
		}

		go activationService.CheckInviteActivation(userID, req.EventType)

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	})

	securedGroup.Get("/user/referrals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var referrals []models.Referral
		if err := activationService.DB.
			Where("referrer_user_id = ?", userID).
			Order("created_at DESC").
			Find(&referrals).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch referrals", "cause": err.Error(),
			})
		}

		var activatedCount int64
		for _, r := range referrals {
			if r.Activated {
				activatedCount++
			}
		}

		var currentTier, nextTier *models.Tier
		for i := range tierEvaluator.Tiers {
			t := &tierEvaluator.Tiers[i]
			if t.Threshold <= activatedCount {
				currentTier = t
			} else if nextTier == nil {
				nextTier = t
			}
		}

		return c.JSON(fiber.Map{
			"referrals":       referrals,
			"activated_count": activatedCount,
			"current_tier":    currentTier,
			"next_tier":       nextTier,
		})
	})

	securedGroup.Get("/user/milestones", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		milestones, err := milestoneService.ListForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch milestones", "cause": err.Error(),
			})
		}
		return c.JSON(milestones)
	})

	securedGroup.Get("/user/subscription", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		sub, err := subscriptionService.GetForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch subscription", "cause": err.Error(),
			})
		}
		return c.JSON(sub)
	})

	// SSE stream for real-time milestone toasts. Registered outside /s:
	// EventSource cannot send the gateway or user-context headers, so this
	// route authenticates via query-param token only.
	app.Get(middleware.MilestoneStreamPath,
		middleware.SSEAuthMiddleware(authClient),
		milestoneService.StreamUserMilestonesSSE,
	)

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Get("/referrals", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "50"))
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 200 {
			size = 50
		}

		query := activationService.DB.Model(&models.Referral{})
		if activated := c.Query("activated"); activated != "" {
			query = query.Where("activated = ?", activated == "true")
		}

		var total int64
		query.Count(&total)

		var referrals []models.Referral
		if err := query.Order("created_at DESC").
			Limit(size).Offset((page - 1) * size).
			Find(&referrals).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch referrals", "cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"referrals": referrals,
			"page":      page,
			"size":      size,
			"total":     total,
		})
	})

	// Manual referral creation, e.g. support backfilling a missed referral link.
	adminGroup.Post("/referrals", func(c *fiber.Ctx) error {
		var req struct {
			ReferrerUserID string `json:"referrer_user_id"`
			ReferredUserID string `json:"referred_user_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.ReferrerUserID == "" || req.ReferredUserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referrer_user_id and referred_user_id are required"})
		}
		if req.ReferrerUserID == req.ReferredUserID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "self-referral is not allowed"})
		}

		referral := models.Referral{
			ID:             uuid.NewString(),
			ReferrerUserID: req.ReferrerUserID,
			ReferredUserID: req.ReferredUserID,
		}
		res := activationService.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_user_id"}},
			DoNothing: true,
		}).Create(&referral)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create referral", "cause": res.Error.Error(),
			})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "user already has a referral"})
		}
		return c.Status(fiber.StatusCreated).JSON(referral)
	})

	adminGroup.Get("/referrals/:userId/tier", func(c *fiber.Ctx) error {
		userID := c.Params("userId")

		var activatedCount int64
		if err := activationService.DB.Model(&models.Referral{}).
			Where("referrer_user_id = ? AND activated = ?", userID, true).
			Count(&activatedCount).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to count activations", "cause": err.Error(),
			})
		}

		var reached *models.Tier
		for i := range tierEvaluator.Tiers {
			if tierEvaluator.Tiers[i].Threshold <= activatedCount {
				reached = &tierEvaluator.Tiers[i]
			}
		}
		return c.JSON(fiber.Map{
			"user_id":         userID,
			"activated_count": activatedCount,
			"current_tier":    reached,
		})
	})

	adminGroup.Post("/milestones/:key/icon", func(c *fiber.Ctx) error {
		key := c.Params("key")
		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}

		url, err := utils.UploadBadgeArtToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "upload failed", "cause": err.Error(),
			})
		}
		if err := milestoneService.SetArt(key, url); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to save art", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"key": key, "icon_url": url})
	})
}
