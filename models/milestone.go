package models

type MilestoneType string

const (
	MilestoneTypeBadge        MilestoneType = "badge"
	MilestoneTypeSpreadUnlock MilestoneType = "spread_unlock"
	MilestoneTypeTitle        MilestoneType = "title"
)

// Milestone is a one-time achievement (badge, tarot spread unlock, or profile
// title). (UserID, Key) is unique — granting the same milestone twice is a
// silent no-op, which is what makes tier dispatch safe to retry.
type Milestone struct {
	ID     string        `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string        `gorm:"uniqueIndex:idx_user_milestone;not null" json:"user_id"` // ExternalUserID
	Key    string        `gorm:"column:milestone_key;uniqueIndex:idx_user_milestone;not null" json:"key"`
	Type   MilestoneType `gorm:"type:varchar(16);not null" json:"type"`
	Data   string        `gorm:"type:jsonb" json:"data"` // e.g., {"name": "Cosmic Seed", "threshold": 1}

	Timestamps
}

// MilestoneArt maps a milestone key to admin-uploaded badge art on R2.
type MilestoneArt struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	Key     string `gorm:"column:milestone_key;uniqueIndex;not null" json:"key"`
	IconURL string `gorm:"type:text" json:"icon_url"`

	Timestamps
}
