package models

import "time"

// ActivationEvent is the closed set of qualifying actions that can activate a referral.
type ActivationEvent string

const (
	EventTarotSpreadCompleted ActivationEvent = "tarot_spread_completed"
	EventJournalEntryCreated  ActivationEvent = "journal_entry_created"
	EventDailyRitualCompleted ActivationEvent = "daily_ritual_completed"
)

// ValidActivationEvent reports whether e is one of the qualifying event types.
func ValidActivationEvent(e ActivationEvent) bool {
	switch e {
	case EventTarotSpreadCompleted, EventJournalEntryCreated, EventDailyRitualCompleted:
		return true
	}
	return false
}

// Referral tracks a single referrer→referred relationship, created at signup.
// RewardGranted is monotonic: once true it never flips back. A row marked
// Activated without RewardGranted is deliberate (velocity-capped or IP-deduped
// activation) — it exists so the referral is never re-evaluated.
type Referral struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerUserID string `gorm:"index;not null" json:"referrer_user_id"` // ExternalUserID
	ReferredUserID string `gorm:"uniqueIndex;not null" json:"referred_user_id"`

	Activated       bool            `gorm:"default:false;index" json:"activated"`
	ActivatedAt     *time.Time      `json:"activated_at,omitempty"`
	ActivationEvent ActivationEvent `gorm:"type:varchar(32)" json:"activation_event,omitempty"`
	ActivatedIP     string          `gorm:"type:varchar(45);index" json:"-"` // for the IP-dedup gate

	RewardGranted   bool       `gorm:"default:false" json:"reward_granted"`
	RewardGrantedAt *time.Time `json:"reward_granted_at,omitempty"`
	RewardTier      *int64     `json:"reward_tier,omitempty"` // last tier threshold the referrer reached via this activation

	Timestamps
}
