// services/push_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// PushClient talks to the push-notification service behind the gateway.
// Delivery is best-effort: reward state never depends on it.
type PushClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type PushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"` // deep-link attributes
}

func NewPushClient(baseURL, token string) *PushClient {
	return &PushClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts one notification. Callers that must not fail on delivery problems
// should use SendAsync instead.
func (c *PushClient) Send(userID string, payload PushPayload) error {
	if c.BaseURL == "" {
		// Push service not configured (e.g., local dev) — skip.
		return nil
	}

	reqBody := map[string]interface{}{
		"user_id": userID,
		"title":   payload.Title,
		"body":    payload.Body,
		"data":    payload.Data,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/notifications/send", c.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SendAsync fires the notification on a detached goroutine. Failures are
// logged and discarded — notifications must never roll back reward state.
func (c *PushClient) SendAsync(userID string, payload PushPayload) {
	go func() {
		if err := c.Send(userID, payload); err != nil {
			log.Printf("⚠️ Push notification failed for %s (%q): %v", userID, payload.Title, err)
		}
	}()
}
