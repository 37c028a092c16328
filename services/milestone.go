package services

import (
	"encoding/json"
	"fmt"
	"log"

	"referral-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MilestoneService struct {
	DB *gorm.DB
}

func NewMilestoneService(db *gorm.DB) *MilestoneService {
	return &MilestoneService{DB: db}
}

// MilestoneData is the free-form attribute blob stored with each milestone.
type MilestoneData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Threshold   int64  `json:"threshold,omitempty"`
	SpreadKey   string `json:"spread_key,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
}

// Grant inserts a milestone if absent, keyed on (userID, key). A duplicate
// grant is a silent no-op — this is what makes tier dispatch safe to retry.
func (s *MilestoneService) Grant(userID string, mtype models.MilestoneType, key string, data MilestoneData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode milestone data: %w", err)
	}

	m := models.Milestone{
		ID:     uuid.NewString(),
		UserID: userID,
		Key:    key,
		Type:   mtype,
		Data:   string(payload),
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "milestone_key"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return fmt.Errorf("failed to grant milestone %s to %s: %w", key, userID, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🎖️ Milestone granted: %s → %s (%s)", key, userID, mtype)
	}
	return nil
}

// ListForUser returns the user's milestones, newest first, with any
// admin-uploaded badge art merged into the data blob.
func (s *MilestoneService) ListForUser(userID string) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&milestones).Error; err != nil {
		return nil, err
	}
	if len(milestones) == 0 {
		return milestones, nil
	}

	keys := make([]string, len(milestones))
	for i, m := range milestones {
		keys[i] = m.Key
	}
	var art []models.MilestoneArt
	if err := s.DB.Where("milestone_key IN ?", keys).Find(&art).Error; err != nil {
		// Art is decoration; return the milestones without it.
		log.Printf("⚠️ Failed to load milestone art: %v", err)
		return milestones, nil
	}
	iconByKey := make(map[string]string, len(art))
	for _, a := range art {
		iconByKey[a.Key] = a.IconURL
	}
	for i, m := range milestones {
		icon, ok := iconByKey[m.Key]
		if !ok {
			continue
		}
		var data MilestoneData
		if err := json.Unmarshal([]byte(m.Data), &data); err != nil {
			continue
		}
		data.IconURL = icon
		if merged, err := json.Marshal(data); err == nil {
			milestones[i].Data = string(merged)
		}
	}
	return milestones, nil
}

// SetArt upserts badge art for a milestone key.
func (s *MilestoneService) SetArt(key, iconURL string) error {
	art := models.MilestoneArt{
		ID:      uuid.NewString(),
		Key:     key,
		IconURL: iconURL,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "milestone_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"icon_url"}),
	}).Create(&art).Error
}
