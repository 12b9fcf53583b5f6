// Package cache publishes best-effort action records to Redis so an
// external historian can reconstruct the play-by-play. The live session
// never reads this data back; a nil client disables journaling entirely.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the shared Redis client. Nil when journaling is disabled.
var Rdb *redis.Client

// InitRedis connects the package-level client using a redis:// URL.
func InitRedis(ctx context.Context, url string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	Rdb = client
	return nil
}

// ActionRecord is one journaled session action.
type ActionRecord struct {
	SessionID   uuid.UUID      `json:"sessionId"`
	ActionIndex int            `json:"actionIndex"`
	ActorID     uuid.UUID      `json:"actorId"`
	ActionType  string         `json:"actionType"`
	Payload     map[string]any `json:"payload"`
	Timestamp   int64          `json:"timestamp"`
}

// actionKey returns the Redis list key holding a session's journal.
func actionKey(sessionID uuid.UUID) string {
	return "duel:actions:" + sessionID.String()
}

// PublishActionRecord appends one record to the session's journal list.
func PublishActionRecord(ctx context.Context, rec ActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := Rdb.RPush(ctx, actionKey(rec.SessionID), raw).Err(); err != nil {
		return fmt.Errorf("rpush action record: %w", err)
	}
	return nil
}
