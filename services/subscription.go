// services/subscription.go
package services

import (
	"fmt"
	"log"
	"time"

	"referral-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionService struct {
	DB *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{DB: db}
}

// periodAddExpr builds the "current_period_end + N days" expression for the
// active dialect. The add happens DB-side so concurrent grants accumulate
// instead of clobbering each other (no read-modify-write in Go).
func periodAddExpr(db *gorm.DB, days int) clause.Expr {
	if db.Dialector.Name() == "sqlite" {
		return gorm.Expr("datetime(current_period_end, '+' || ? || ' days')", days)
	}
	return gorm.Expr("current_period_end + make_interval(days => ?)", days)
}

// ExtendPro extends or creates a user's Pro access by `days`, idempotently and
// additively. Stacked rewards accumulate duration; nothing here ever shortens
// or cancels a subscription.
func (s *SubscriptionService) ExtendPro(userID string, days int) error {
	if days <= 0 {
		return fmt.Errorf("invalid extension: %d days", days)
	}

	extend := func() (int64, error) {
		res := s.DB.Model(&models.Subscription{}).
			Where("user_id = ? AND status IN ?", userID,
				[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusTrial}).
			Update("current_period_end", periodAddExpr(s.DB, days))
		return res.RowsAffected, res.Error
	}

	rows, err := extend()
	if err != nil {
		return fmt.Errorf("failed to extend subscription for %s: %w", userID, err)
	}
	if rows > 0 {
		log.Printf("💫 Pro extended: user=%s +%dd", userID, days)
		return nil
	}

	// No extendable row — start a fresh reward trial.
	now := time.Now()
	end := now.AddDate(0, 0, days)
	sub := models.Subscription{
		ID:               uuid.NewString(),
		UserID:           userID,
		Status:           models.SubscriptionStatusTrial,
		PlanType:         models.PlanReferralReward,
		TrialEndsAt:      &end,
		CurrentPeriodEnd: &end,
		TrialUsed:        true,
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&sub)
	if res.Error != nil {
		return fmt.Errorf("failed to create reward trial for %s: %w", userID, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("💫 Reward trial started: user=%s %dd", userID, days)
		return nil
	}

	// A row already exists but was not active/trial when we first looked. Either
	// it appeared concurrently (retry the atomic add) or it lapsed to "none".
	rows, err = extend()
	if err != nil {
		return fmt.Errorf("failed to extend subscription for %s: %w", userID, err)
	}
	if rows > 0 {
		return nil
	}
	res = s.DB.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusNone).
		Updates(map[string]interface{}{
			"status":             models.SubscriptionStatusTrial,
			"plan_type":          models.PlanReferralReward,
			"trial_ends_at":      end,
			"current_period_end": end,
			"trial_used":         true,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reactivate lapsed subscription for %s: %w", userID, res.Error)
	}
	log.Printf("💫 Lapsed subscription restarted as reward trial: user=%s %dd", userID, days)
	return nil
}

// GetForUser returns the user's subscription row, or a synthetic "none" row if
// the user has never held one.
func (s *SubscriptionService) GetForUser(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.DB.Where("user_id = ?", userID).First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return &models.Subscription{UserID: userID, Status: models.SubscriptionStatusNone}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ExpireLapsedTrials flips reward trials whose period has ended to "none".
// Paid (active) rows are billing's to manage — never touched here.
func (s *SubscriptionService) ExpireLapsedTrials() (int64, error) {
	res := s.DB.Model(&models.Subscription{}).
		Where("status = ? AND current_period_end < ?", models.SubscriptionStatusTrial, time.Now()).
		Update("status", models.SubscriptionStatusNone)
	return res.RowsAffected, res.Error
}
