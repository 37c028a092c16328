package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins string

	// Database configuration
	DatabaseURL string
	RedisURL    string

	// Gateway / sibling services
	ServiceToken   string
	AuthServiceURL string
	PushServiceURL string
	PushToken      string
	SyncServiceURL string

	// Base referral reward durations (days)
	ReferrerRewardDays int
	ReferredRewardDays int

	// Anti-abuse gates
	MinAccountAge  time.Duration
	VelocityCap    int64
	VelocityWindow time.Duration
	IPDedupWindow  time.Duration
}

var AppConfig *Config

func InitConfig() {
	if err := godotenv.Load(); err != nil {
		// .env is optional; environment variables win anyway
	}

	AppConfig = &Config{
		Port:               getEnv("PORT", "5300"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ServiceToken:       getEnv("REFERRAL_SERVICE_TOKEN", ""),
		AuthServiceURL:     getEnv("AUTH_SERVICE_URL", ""),
		PushServiceURL:     getEnv("PUSH_SERVICE_URL", ""),
		PushToken:          getEnv("PUSH_SERVICE_TOKEN", ""),
		SyncServiceURL:     getEnv("SYNC_SERVICE_URL", ""),
		ReferrerRewardDays: getEnvInt("REFERRER_REWARD_DAYS", 7),
		ReferredRewardDays: getEnvInt("REFERRED_REWARD_DAYS", 30),
		MinAccountAge:      time.Duration(getEnvInt("MIN_ACCOUNT_AGE_MINUTES", 60)) * time.Minute,
		VelocityCap:        int64(getEnvInt("ACTIVATION_VELOCITY_CAP", 3)),
		VelocityWindow:     time.Duration(getEnvInt("VELOCITY_WINDOW_HOURS", 24)) * time.Hour,
		IPDedupWindow:      time.Duration(getEnvInt("IP_DEDUP_WINDOW_HOURS", 24)) * time.Hour,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
