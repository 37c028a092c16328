// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"referral-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredUserFromProfile matches the JSON response from the profile sync service.
type MirroredUserFromProfile struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"referral_code"`
	ReferredByID *string   `json:"referred_by_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetUserChangesResponse is the top-level structure of the sync service response.
type GetUserChangesResponse struct {
	Users []MirroredUserFromProfile `json:"users"`
}

// ProfileUserSyncWorker mirrors profile-service users into referral_users and
// opens a pending Referral for every newly referred signup. The local snapshot
// carries the profile-side account creation time, which the account-age gate
// measures against.
type ProfileUserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ProfileUserSyncWorker {
	return &ProfileUserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileUserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile User Sync Worker (sync-service → referral_users)…")
	go w.run(ctx)
}

func (w *ProfileUserSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt in the local snapshot table.
func (w *ProfileUserSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM referral_users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches user changes since `since`, upserts snapshots, and creates
// pending referrals for referred signups.
func (w *ProfileUserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetUserChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	if len(response.Users) == 0 {
		return nil
	}

	var upsertCount, referralCount, errorCount int
	for _, remoteUser := range response.Users {
		localUser := models.ReferralUser{
			ID:             uuid.NewString(),
			ExternalUserID: remoteUser.ExternalID,
			Username:       remoteUser.Username,
			Email:          remoteUser.Email,
			ReferralCode:   remoteUser.ReferralCode,
			ReferredByID:   remoteUser.ReferredByID,
			CreatedAt:      remoteUser.CreatedAt,
			UpdatedAt:      remoteUser.UpdatedAt,
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "referral_code", "referred_by_id", "created_at", "updated_at",
			}),
		}).Create(&localUser).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert referral_user (external_id=%q): %v", remoteUser.ExternalID, err)
			continue
		}
		upsertCount++

		if created, err := w.ensureReferral(remoteUser); err != nil {
			log.Printf("[SYNC] ⚠️ Failed to open referral for %q: %v", remoteUser.ExternalID, err)
		} else if created {
			referralCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d user(s): %d upserted, %d referral(s) opened, %d error(s)",
		len(response.Users), upsertCount, referralCount, errorCount)
	return nil
}

// ensureReferral opens a pending referral for a referred signup. The unique
// index on referred_user_id makes repeated syncs a no-op; self-referrals are
// never materialized.
func (w *ProfileUserSyncWorker) ensureReferral(u MirroredUserFromProfile) (bool, error) {
	if u.ReferredByID == nil || *u.ReferredByID == "" {
		return false, nil
	}
	if *u.ReferredByID == u.ExternalID {
		log.Printf("[SYNC] 🚫 Self-referral ignored for %q", u.ExternalID)
		return false, nil
	}

	referral := models.Referral{
		ID:             uuid.NewString(),
		ReferrerUserID: *u.ReferredByID,
		ReferredUserID: u.ExternalID,
	}
	res := w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "referred_user_id"}},
		DoNothing: true,
	}).Create(&referral)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
