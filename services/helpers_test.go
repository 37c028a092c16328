package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"referral-reward-system/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ReferralUser{},
		&models.Referral{},
		&models.Subscription{},
		&models.Milestone{},
		&models.MilestoneArt{},
	))
	return db
}

func newTestSessions(t *testing.T) *SessionService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionService(client, 24*time.Hour)
}

// pushRecorder captures notifications sent to a fake push service.
type pushRecorder struct {
	mu     sync.Mutex
	titles []string
}

func (p *pushRecorder) add(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.titles)
}

func (p *pushRecorder) has(fragment string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, title := range p.titles {
		if strings.Contains(title, fragment) {
			return true
		}
	}
	return false
}

func newTestPush(t *testing.T) (*PushClient, *pushRecorder) {
	t.Helper()
	rec := &pushRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.add(body.Title)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return NewPushClient(server.URL, "test-token"), rec
}

func seedUser(t *testing.T, db *gorm.DB, externalID string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.ReferralUser{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		CreatedAt:      createdAt,
	}).Error)
}

func seedReferral(t *testing.T, db *gorm.DB, referrerID, referredID string) models.Referral {
	t.Helper()
	r := models.Referral{
		ID:             uuid.NewString(),
		ReferrerUserID: referrerID,
		ReferredUserID: referredID,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func seedActivatedReferral(t *testing.T, db *gorm.DB, referrerID, referredID, ip string, activatedAt time.Time) models.Referral {
	t.Helper()
	r := models.Referral{
		ID:              uuid.NewString(),
		ReferrerUserID:  referrerID,
		ReferredUserID:  referredID,
		Activated:       true,
		ActivatedAt:     &activatedAt,
		ActivatedIP:     ip,
		RewardGranted:   true,
		RewardGrantedAt: &activatedAt,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

// newActivationStack wires a full activation pipeline against in-memory stores.
func newActivationStack(t *testing.T) (*ActivationService, *gorm.DB, *pushRecorder) {
	t.Helper()
	db := newTestDB(t)
	sessions := newTestSessions(t)
	subs := NewSubscriptionService(db)
	miles := NewMilestoneService(db)
	push, rec := newTestPush(t)
	tiers := NewTierEvaluator(db, models.DefaultTiers, subs, miles, push)

	svc := &ActivationService{
		DB:                 db,
		Sessions:           sessions,
		Subscriptions:      subs,
		Tiers:              tiers,
		Push:               push,
		ReferrerRewardDays: 7,
		ReferredRewardDays: 30,
		MinAccountAge:      time.Hour,
		VelocityCap:        3,
		VelocityWindow:     24 * time.Hour,
		IPDedupWindow:      24 * time.Hour,
	}
	return svc, db, rec
}
