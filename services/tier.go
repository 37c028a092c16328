// services/tier.go
package services

import (
	"fmt"
	"log"

	"referral-reward-system/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// TierEvaluator decides whether a referrer crossed a milestone tier and
// dispatches the tier's reward. The tier table is injected so tests can run
// against alternative tables.
type TierEvaluator struct {
	DB            *gorm.DB
	Tiers         []models.Tier
	Subscriptions *SubscriptionService
	Milestones    *MilestoneService
	Push          *PushClient
}

func NewTierEvaluator(db *gorm.DB, tiers []models.Tier, subs *SubscriptionService, miles *MilestoneService, push *PushClient) *TierEvaluator {
	return &TierEvaluator{
		DB:            db,
		Tiers:         tiers,
		Subscriptions: subs,
		Milestones:    miles,
		Push:          push,
	}
}

var titleCaser = cases.Title(language.English)

// CrossedTier returns the first tier whose threshold lies in
// (previousCount, newCount], or nil if none was crossed. Activations increment
// by one, so normally at most one tier qualifies; on larger jumps the lowest
// threshold wins.
func (e *TierEvaluator) CrossedTier(previousCount, newCount int64) *models.Tier {
	for i := range e.Tiers {
		t := &e.Tiers[i]
		if previousCount < t.Threshold && t.Threshold <= newCount {
			return t
		}
	}
	return nil
}

// ProcessCrossing evaluates a count transition for the referrer and, if a tier
// boundary was crossed, grants its reward, stamps the triggering referral row,
// and notifies the referrer. The common case (no boundary crossed) is a no-op.
func (e *TierEvaluator) ProcessCrossing(referralID, referrerUserID string, previousCount, newCount int64) error {
	tier := e.CrossedTier(previousCount, newCount)
	if tier == nil {
		return nil
	}

	log.Printf("🌟 Tier reached: user=%s threshold=%d (%s)", referrerUserID, tier.Threshold, tier.Label)

	if err := e.dispatchReward(referrerUserID, tier); err != nil {
		return err
	}

	// Audit field: which threshold this referral's activation pushed the referrer past.
	if err := e.DB.Model(&models.Referral{}).
		Where("id = ?", referralID).
		Update("reward_tier", tier.Threshold).Error; err != nil {
		log.Printf("⚠️ Failed to stamp reward_tier on referral %s: %v", referralID, err)
	}

	e.Push.SendAsync(referrerUserID, PushPayload{
		Title: fmt.Sprintf("✨ %s unlocked!", tier.Label),
		Body:  tier.Description,
		Data: map[string]string{
			"type":      "referral_tier_reached",
			"threshold": fmt.Sprintf("%d", tier.Threshold),
			"link":      "/profile/circle",
		},
	})
	return nil
}

func (e *TierEvaluator) dispatchReward(userID string, tier *models.Tier) error {
	switch tier.Reward.Kind {
	case models.TierRewardProExtension:
		return e.Subscriptions.ExtendPro(userID, tier.Reward.ProDays)

	case models.TierRewardBadge:
		return e.Milestones.Grant(userID, models.MilestoneTypeBadge, slug.Make(tier.Label), MilestoneData{
			Name:        tier.Label,
			Description: tier.Description,
			Threshold:   tier.Threshold,
		})

	case models.TierRewardSpreadUnlock:
		if err := e.Milestones.Grant(userID, models.MilestoneTypeSpreadUnlock, tier.Reward.SpreadKey, MilestoneData{
			Name:        tier.Label,
			Description: tier.Description,
			Threshold:   tier.Threshold,
			SpreadKey:   tier.Reward.SpreadKey,
		}); err != nil {
			return err
		}
		if tier.Reward.CompanionBadge == "" {
			return nil
		}
		return e.Milestones.Grant(userID, models.MilestoneTypeBadge, slug.Make(tier.Reward.CompanionBadge), MilestoneData{
			Name:      tier.Reward.CompanionBadge,
			Threshold: tier.Threshold,
		})

	case models.TierRewardTitle:
		return e.Milestones.Grant(userID, models.MilestoneTypeTitle, slug.Make(tier.Label), MilestoneData{
			Name:        titleCaser.String(tier.Label),
			Description: tier.Description,
			Threshold:   tier.Threshold,
		})

	default:
		// Exhaustive over TierRewardKind; anything else is a table bug.
		return fmt.Errorf("unhandled tier reward kind %q at threshold %d", tier.Reward.Kind, tier.Threshold)
	}
}
