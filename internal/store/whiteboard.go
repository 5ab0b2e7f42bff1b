package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/liteclass/liteclass/internal/models"
)

type redisWhiteboardStore struct {
	client *redis.Client
}

func (s *redisWhiteboardStore) Append(ctx context.Context, entry *models.WhiteboardEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal whiteboard entry: %w", err)
	}
	if err := s.client.RPush(ctx, wbLogKey(entry.RoomID), data).Err(); err != nil {
		return fmt.Errorf("append whiteboard entry: %w", err)
	}
	return s.client.Expire(ctx, wbLogKey(entry.RoomID), roomTTL).Err()
}

func (s *redisWhiteboardStore) History(ctx context.Context, roomID string) ([]models.WhiteboardEntry, error) {
	raw, err := s.client.LRange(ctx, wbLogKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load whiteboard log: %w", err)
	}

	entries := make([]models.WhiteboardEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.WhiteboardEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// A corrupt entry must not hide the rest of the log.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *redisWhiteboardStore) Clear(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, wbLogKey(roomID)).Err()
}
