package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
	SubscriptionStatusTrial  SubscriptionStatus = "trial"
	SubscriptionStatusNone   SubscriptionStatus = "none"
)

const PlanReferralReward = "referral_reward"

// Subscription is a user's Pro access grant: one row per user. Referral rewards
// only ever extend CurrentPeriodEnd — cancellation and paid-plan changes belong
// to the billing service.
type Subscription struct {
	ID     string             `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string             `gorm:"uniqueIndex;not null" json:"user_id"` // ExternalUserID
	Status SubscriptionStatus `gorm:"type:varchar(16);not null;default:'none'" json:"status"`

	PlanType         string     `gorm:"type:varchar(32)" json:"plan_type"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	TrialUsed        bool       `gorm:"default:false" json:"trial_used"`

	Timestamps
}
