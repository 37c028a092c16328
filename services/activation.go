// services/activation.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"referral-reward-system/config"
	"referral-reward-system/models"

	"gorm.io/gorm"
)

// ActivationService decides whether a referred user's qualifying action should
// activate their referral and pay out the base reward. It is invoked as a
// side effect of the user's primary action (journaling, tarot, ritual) and
// must never fail that action: every error is logged and swallowed here.
type ActivationService struct {
	DB            *gorm.DB
	Sessions      *SessionService
	Subscriptions *SubscriptionService
	Tiers         *TierEvaluator
	Push          *PushClient

	ReferrerRewardDays int
	ReferredRewardDays int
	MinAccountAge      time.Duration
	VelocityCap        int64
	VelocityWindow     time.Duration
	IPDedupWindow      time.Duration
}

func NewActivationService(db *gorm.DB, sessions *SessionService, subs *SubscriptionService, tiers *TierEvaluator, push *PushClient, cfg *config.Config) *ActivationService {
	return &ActivationService{
		DB:                 db,
		Sessions:           sessions,
		Subscriptions:      subs,
		Tiers:              tiers,
		Push:               push,
		ReferrerRewardDays: cfg.ReferrerRewardDays,
		ReferredRewardDays: cfg.ReferredRewardDays,
		MinAccountAge:      cfg.MinAccountAge,
		VelocityCap:        cfg.VelocityCap,
		VelocityWindow:     cfg.VelocityWindow,
		IPDedupWindow:      cfg.IPDedupWindow,
	}
}

// gateDecision is the outcome of the anti-abuse gate chain.
type gateDecision int

const (
	gateGrant      gateDecision = iota // all gates passed, pay out
	gateSkip                           // leave the referral untouched
	gateRecordOnly                     // mark activated so it is never re-evaluated, but no reward
)

// activationSnapshot carries everything the gates need, fetched up front so
// the gate logic itself stays pure and unit-testable without a database.
type activationSnapshot struct {
	Referral          models.Referral
	AccountCreatedAt  time.Time
	Now               time.Time
	RecentActivations int64 // referrer's activations in the trailing velocity window
	SameIPActivation  bool  // another activation for this referrer from the same IP in the dedup window
}

func isSelfReferral(r models.Referral) bool {
	return r.ReferrerUserID == r.ReferredUserID
}

func accountTooNew(createdAt, now time.Time, minAge time.Duration) bool {
	return now.Sub(createdAt) < minAge
}

// evaluateGates runs the gate chain in a fixed order, short-circuiting on the
// first failure. The returned reason is for logging only.
func (s *ActivationService) evaluateGates(snap activationSnapshot) (gateDecision, string) {
	if isSelfReferral(snap.Referral) {
		return gateSkip, "self-referral"
	}
	if accountTooNew(snap.AccountCreatedAt, snap.Now, s.MinAccountAge) {
		return gateSkip, fmt.Sprintf("account too new (%s old)", snap.Now.Sub(snap.AccountCreatedAt).Round(time.Minute))
	}
	if snap.RecentActivations >= s.VelocityCap {
		return gateRecordOnly, fmt.Sprintf("velocity cap (%d in window)", snap.RecentActivations)
	}
	if snap.SameIPActivation {
		return gateRecordOnly, "duplicate activation IP for referrer"
	}
	return gateGrant, ""
}

// CheckInviteActivation is the entry point invoked after a qualifying user
// action. It never returns an error and never panics out to the caller — the
// primary action (journal entry, tarot draw, ritual) must not be affected by
// anything that happens here.
func (s *ActivationService) CheckInviteActivation(userID string, event models.ActivationEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [ACTIVATION] panic recovered for user %s: %v", userID, r)
		}
	}()

	if !models.ValidActivationEvent(event) {
		log.Printf("⚠️ [ACTIVATION] Unknown event type %q for user %s — ignored", event, userID)
		return
	}

	var referral models.Referral
	err := s.DB.Where("referred_user_id = ? AND activated = ? AND reward_granted = ?",
		userID, false, false).First(&referral).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Not a referred user, or already activated — the common case.
		return
	}
	if err != nil {
		log.Printf("❌ [ACTIVATION] DB error fetching referral for %s: %v", userID, err)
		return
	}

	snap, err := s.buildSnapshot(referral)
	if err != nil {
		log.Printf("❌ [ACTIVATION] Failed to build snapshot for referral %s: %v", referral.ID, err)
		return
	}

	decision, reason := s.evaluateGates(snap)
	switch decision {
	case gateSkip:
		log.Printf("🚫 [ACTIVATION] Skipped referral %s: %s", referral.ID, reason)
		return

	case gateRecordOnly:
		// Record the activation so the referral is never re-evaluated, but pay
		// nothing — burst and multi-account abuse lands here.
		log.Printf("🚫 [ACTIVATION] Recording without reward for referral %s: %s", referral.ID, reason)
		if err := s.markActivated(&referral, event, snap, false); err != nil {
			log.Printf("❌ [ACTIVATION] Failed to mark referral %s activated: %v", referral.ID, err)
		}
		return
	}

	// All gates passed: pay out both sides. A failed grant on one side is
	// logged but does not abort the sibling grant.
	if err := s.Subscriptions.ExtendPro(referral.ReferrerUserID, s.ReferrerRewardDays); err != nil {
		log.Printf("❌ [ACTIVATION] Referrer grant failed for %s: %v", referral.ReferrerUserID, err)
	}
	if err := s.Subscriptions.ExtendPro(referral.ReferredUserID, s.ReferredRewardDays); err != nil {
		log.Printf("❌ [ACTIVATION] Referred grant failed for %s: %v", referral.ReferredUserID, err)
	}

	if err := s.markActivated(&referral, event, snap, true); err != nil {
		log.Printf("❌ [ACTIVATION] Failed to mark referral %s rewarded: %v", referral.ID, err)
		return
	}
	log.Printf("✅ [ACTIVATION] Referral %s activated via %s (referrer=%s)", referral.ID, event, referral.ReferrerUserID)

	// Re-count and hand off tier evaluation. The counts are read without a
	// lock; the milestone uniqueness constraint and the additive period
	// extension keep rare races from double- or under-paying.
	var newCount int64
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_user_id = ? AND activated = ?", referral.ReferrerUserID, true).
		Count(&newCount).Error; err != nil {
		log.Printf("❌ [ACTIVATION] Failed to count activations for %s: %v", referral.ReferrerUserID, err)
		return
	}

	// Detached: tier rewards and notifications are secondary to the payout above.
	go func(referralID, referrerID string, count int64) {
		if err := s.Tiers.ProcessCrossing(referralID, referrerID, count-1, count); err != nil {
			log.Printf("❌ [TIER] Processing failed for %s (count=%d): %v", referrerID, count, err)
		}
	}(referral.ID, referral.ReferrerUserID, newCount)

	s.Push.SendAsync(referral.ReferrerUserID, PushPayload{
		Title: "🌙 Your invite came to life!",
		Body:  "A friend you invited just took their first step — 7 days of Lunary Pro are yours.",
		Data:  map[string]string{"type": "referral_activated", "link": "/profile/circle"},
	})
	s.Push.SendAsync(referral.ReferredUserID, PushPayload{
		Title: "✨ Welcome gift unlocked",
		Body:  "Your first steps earned you 30 days of Lunary Pro. Enjoy the full sky.",
		Data:  map[string]string{"type": "referral_welcome", "link": "/app"},
	})
}

// buildSnapshot gathers the data the gate chain needs in one place.
func (s *ActivationService) buildSnapshot(referral models.Referral) (activationSnapshot, error) {
	now := time.Now()
	snap := activationSnapshot{Referral: referral, Now: now}

	var user models.ReferralUser
	if err := s.DB.Where("external_user_id = ?", referral.ReferredUserID).First(&user).Error; err != nil {
		return snap, fmt.Errorf("referred user %s not in local snapshot: %w", referral.ReferredUserID, err)
	}
	snap.AccountCreatedAt = user.CreatedAt

	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_user_id = ? AND activated = ? AND activated_at > ?",
			referral.ReferrerUserID, true, now.Add(-s.VelocityWindow)).
		Count(&snap.RecentActivations).Error; err != nil {
		return snap, fmt.Errorf("velocity count failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ip, err := s.Sessions.LastIP(ctx, referral.ReferredUserID)
	if err != nil {
		// Session store being down should not block a legitimate reward; the
		// gate simply sees no IP.
		log.Printf("⚠️ [ACTIVATION] Session IP lookup failed for %s: %v", referral.ReferredUserID, err)
		ip = ""
	}
	snap.Referral.ActivatedIP = ip

	if ip != "" {
		var dupes int64
		if err := s.DB.Model(&models.Referral{}).
			Where("referrer_user_id = ? AND id <> ? AND activated = ? AND activated_ip = ? AND activated_at > ?",
				referral.ReferrerUserID, referral.ID, true, ip, now.Add(-s.IPDedupWindow)).
			Count(&dupes).Error; err != nil {
			return snap, fmt.Errorf("IP dedup count failed: %w", err)
		}
		snap.SameIPActivation = dupes > 0
	}
	return snap, nil
}

// markActivated flips the referral to activated, optionally with the reward.
// Reward flags only ever go false→true here.
func (s *ActivationService) markActivated(referral *models.Referral, event models.ActivationEvent, snap activationSnapshot, rewarded bool) error {
	updates := map[string]interface{}{
		"activated":        true,
		"activated_at":     snap.Now,
		"activation_event": event,
		"activated_ip":     snap.Referral.ActivatedIP,
	}
	if rewarded {
		updates["reward_granted"] = true
		updates["reward_granted_at"] = snap.Now
	}
	return s.DB.Model(&models.Referral{}).
		Where("id = ? AND reward_granted = ?", referral.ID, false).
		Updates(updates).Error
}
