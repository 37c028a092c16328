package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralUser is a local snapshot of user data needed for referral checks.
// Owned and managed solely by the referral service; populated via sync worker
// from the Profile Service's user table. CreatedAt mirrors the profile-side
// account creation time — it is what the account-age gate measures against.
type ReferralUser struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string `gorm:"index;not null" json:"username"`
	Email          string `json:"email,omitempty"`

	ReferralCode string  `gorm:"index" json:"referral_code,omitempty"` // code this user shares
	ReferredByID *string `gorm:"index" json:"referred_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"` // profile-side account creation time
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
