package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"referral-reward-system/config"
	"referral-reward-system/handlers"
	"referral-reward-system/middleware"
	"referral-reward-system/models"
	"referral-reward-system/services"
	"referral-reward-system/utils"
	"referral-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	config.InitConfig()
	cfg := config.AppConfig

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // badge art uploads only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed (sole exception: the SSE
	// stream, which carries its own query-token auth)
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsList := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	var db *gorm.DB
	var err error
	if cfg.DatabaseURL == "" {
		log.Println("⚠️  DATABASE_URL not set — falling back to local SQLite (dev only)")
		db, err = gorm.Open(sqlite.Open("referral-rewards.db"), &gorm.Config{})
	} else {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	}
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ReferralUser{},
		&models.Referral{},
		&models.Subscription{},
		&models.Milestone{},
		&models.MilestoneArt{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to parse REDIS_URL:", err)
	}
	redisClient := redis.NewClient(redisOpt)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	sessionService := services.NewSessionService(redisClient, cfg.IPDedupWindow)
	subscriptionService := services.NewSubscriptionService(db)
	milestoneService := services.NewMilestoneService(db)
	pushClient := services.NewPushClient(cfg.PushServiceURL, cfg.PushToken)
	tierEvaluator := services.NewTierEvaluator(db, models.DefaultTiers, subscriptionService, milestoneService, pushClient)
	activationService := services.NewActivationService(db, sessionService, subscriptionService, tierEvaluator, pushClient, cfg)
	authClient := services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)

	if cfg.SyncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	syncWorker := workers.NewProfileUserSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.ServiceToken)
	syncWorker.Start(ctx)

	subscriptionService.StartTrialSweep()

	handlers.SetupReferralRoutes(app, activationService, subscriptionService, milestoneService, tierEvaluator, sessionService, authClient)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Println("✅ Profile User Sync Worker running")
	log.Println("✅ Trial sweep running (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway (SSE stream self-authenticates)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = redisClient.Close()
}
