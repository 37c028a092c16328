package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionService tracks the last IP each user was seen from. Keys expire after
// the dedup window, so the store never needs sweeping.
type SessionService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionService(client *redis.Client, ttl time.Duration) *SessionService {
	return &SessionService{client: client, ttl: ttl}
}

func lastIPKey(userID string) string {
	return fmt.Sprintf("session:last_ip:%s", userID)
}

// RecordIP stores the caller's IP for the dedup window.
func (s *SessionService) RecordIP(ctx context.Context, userID, ip string) error {
	if userID == "" || ip == "" {
		return nil
	}
	return s.client.Set(ctx, lastIPKey(userID), ip, s.ttl).Err()
}

// LastIP returns the most recent session IP for the user, or "" if none is
// known (expired or never recorded).
func (s *SessionService) LastIP(ctx context.Context, userID string) (string, error) {
	ip, err := s.client.Get(ctx, lastIPKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ip, nil
}
