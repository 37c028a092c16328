package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"referral-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ReferralUser{}, &models.Referral{}))
	return db
}

func fakeSyncServer(t *testing.T, users []MirroredUserFromProfile) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "sync-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(GetUserChangesResponse{Users: users})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSyncBatchUpsertsUsersAndOpensReferrals(t *testing.T) {
	db := newTestDB(t)
	referrer := "user-referrer"
	server := fakeSyncServer(t, []MirroredUserFromProfile{
		{
			ExternalID:   referrer,
			Username:     "luna",
			ReferralCode: "LUNA-1",
			CreatedAt:    time.Now().Add(-72 * time.Hour),
			UpdatedAt:    time.Now(),
		},
		{
			ExternalID:   "user-invited",
			Username:     "stella",
			ReferredByID: &referrer,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		},
	})

	w := NewProfileUserSyncWorker(db, server.URL, "/api/v1/public/profiles", "sync-token")
	require.NoError(t, w.syncBatch(context.Background(), time.Unix(0, 0)))

	var userCount int64
	db.Model(&models.ReferralUser{}).Count(&userCount)
	assert.Equal(t, int64(2), userCount)

	var referral models.Referral
	require.NoError(t, db.First(&referral, "referred_user_id = ?", "user-invited").Error)
	assert.Equal(t, referrer, referral.ReferrerUserID)
	assert.False(t, referral.Activated, "referrals open pending")

	// Organic signup opened nothing.
	var count int64
	db.Model(&models.Referral{}).Where("referred_user_id = ?", referrer).Count(&count)
	assert.Zero(t, count)
}

func TestSyncBatchIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	referrer := "user-referrer"
	server := fakeSyncServer(t, []MirroredUserFromProfile{
		{
			ExternalID:   "user-invited",
			Username:     "stella",
			ReferredByID: &referrer,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		},
	})

	w := NewProfileUserSyncWorker(db, server.URL, "/api/v1/public/profiles", "sync-token")
	require.NoError(t, w.syncBatch(context.Background(), time.Unix(0, 0)))
	require.NoError(t, w.syncBatch(context.Background(), time.Unix(0, 0)))

	var userCount, referralCount int64
	db.Model(&models.ReferralUser{}).Where("external_user_id = ?", "user-invited").Count(&userCount)
	db.Model(&models.Referral{}).Where("referred_user_id = ?", "user-invited").Count(&referralCount)
	assert.Equal(t, int64(1), userCount)
	assert.Equal(t, int64(1), referralCount)
}

func TestSyncBatchUpdatesExistingSnapshot(t *testing.T) {
	db := newTestDB(t)
	server := fakeSyncServer(t, []MirroredUserFromProfile{
		{ExternalID: "user-1", Username: "renamed", UpdatedAt: time.Now()},
	})

	require.NoError(t, db.Create(&models.ReferralUser{
		ID:             "local-id",
		ExternalUserID: "user-1",
		Username:       "original",
	}).Error)

	w := NewProfileUserSyncWorker(db, server.URL, "/api/v1/public/profiles", "sync-token")
	require.NoError(t, w.syncBatch(context.Background(), time.Unix(0, 0)))

	var user models.ReferralUser
	require.NoError(t, db.First(&user, "external_user_id = ?", "user-1").Error)
	assert.Equal(t, "renamed", user.Username)
	assert.Equal(t, "local-id", user.ID, "upsert keeps the local row")
}

func TestEnsureReferralSkipsSelfReferral(t *testing.T) {
	db := newTestDB(t)
	w := NewProfileUserSyncWorker(db, "http://unused", "/unused", "sync-token")

	self := "user-self"
	created, err := w.ensureReferral(MirroredUserFromProfile{
		ExternalID:   self,
		ReferredByID: &self,
	})
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	db.Model(&models.Referral{}).Count(&count)
	assert.Zero(t, count)
}

func TestEnsureReferralSkipsOrganicSignups(t *testing.T) {
	db := newTestDB(t)
	w := NewProfileUserSyncWorker(db, "http://unused", "/unused", "sync-token")

	empty := ""
	for _, u := range []MirroredUserFromProfile{
		{ExternalID: "user-a"},
		{ExternalID: "user-b", ReferredByID: &empty},
	} {
		created, err := w.ensureReferral(u)
		require.NoError(t, err)
		assert.False(t, created)
	}
}

func TestSyncBatchRejectsBadToken(t *testing.T) {
	db := newTestDB(t)
	server := fakeSyncServer(t, nil)

	w := NewProfileUserSyncWorker(db, server.URL, "/api/v1/public/profiles", "wrong-token")
	err := w.syncBatch(context.Background(), time.Unix(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}
