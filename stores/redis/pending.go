// Package redis provides a Redis-backed pending-link store for hosts that
// keep their sessions in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	sa "github.com/dzteam/steamauth"
)

// DefaultTTL bounds how long a pending link survives without being
// finalized. A link older than this belongs to an abandoned login.
const DefaultTTL = 15 * time.Minute

// PendingStore keeps the pending link under a per-session key. Construct one
// per request with that request's session ID.
type PendingStore struct {
	Client    *redis.Client
	SessionID string
	TTL       time.Duration
}

func NewPendingStore(client *redis.Client, sessionID string) *PendingStore {
	return &PendingStore{Client: client, SessionID: sessionID, TTL: DefaultTTL}
}

func (s *PendingStore) key() string {
	return "steamauth:pending:" + s.SessionID
}

func (s *PendingStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *PendingStore) Get(ctx context.Context) (*sa.PendingLink, error) {
	val, err := s.Client.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return nil, nil // not set
	}
	if err != nil {
		return nil, err
	}
	var link sa.PendingLink
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, fmt.Errorf("pending link: failed to unmarshal: %w", err)
	}
	return &link, nil
}

func (s *PendingStore) Put(ctx context.Context, link sa.PendingLink) error {
	if s.SessionID == "" {
		return fmt.Errorf("pending link: missing session id")
	}
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("pending link: failed to marshal: %w", err)
	}
	return s.Client.Set(ctx, s.key(), data, s.ttl()).Err()
}

func (s *PendingStore) Clear(ctx context.Context) error {
	return s.Client.Del(ctx, s.key()).Err()
}
