package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liteclass/liteclass/internal/models"
)

type redisRoomStore struct {
	client *redis.Client
}

// roomDoc is the persisted shape of a room. Membership lives in separate
// set keys so concurrent joins stay idempotent single-key operations.
type roomDoc struct {
	Code      string `json:"code"`
	HostID    string `json:"hostId"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *redisRoomStore) Create(ctx context.Context, room *models.Room) error {
	doc := roomDoc{
		Code:      room.Code,
		HostID:    room.HostID,
		Active:    room.Active,
		CreatedAt: room.CreatedAt.Unix(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := s.client.Set(ctx, roomKey(room.Code), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("store room: %w", err)
	}
	return nil
}

func (s *redisRoomStore) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	data, err := s.client.Get(ctx, roomKey(code)).Result()
	if err == redis.Nil {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}

	var doc roomDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("parse room: %w", err)
	}

	room := &models.Room{
		Code:      doc.Code,
		HostID:    doc.HostID,
		Active:    doc.Active,
		CreatedAt: time.Unix(doc.CreatedAt, 0),
	}

	room.Participants, err = s.client.SMembers(ctx, participantsKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	room.WaitingRoom, err = s.client.SMembers(ctx, waitingKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("load waiting room: %w", err)
	}
	room.WhiteboardAccess, err = s.client.SMembers(ctx, wbAccessKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("load whiteboard access: %w", err)
	}
	return room, nil
}

func (s *redisRoomStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx,
		roomKey(code),
		participantsKey(code),
		waitingKey(code),
		wbAccessKey(code),
	).Err()
}

func (s *redisRoomStore) AddParticipant(ctx context.Context, code, identityID string) error {
	return s.addToSet(ctx, participantsKey(code), identityID)
}

func (s *redisRoomStore) RemoveParticipant(ctx context.Context, code, identityID string) error {
	return s.client.SRem(ctx, participantsKey(code), identityID).Err()
}

func (s *redisRoomStore) AddWaiting(ctx context.Context, code, identityID string) error {
	return s.addToSet(ctx, waitingKey(code), identityID)
}

func (s *redisRoomStore) RemoveWaiting(ctx context.Context, code, identityID string) error {
	return s.client.SRem(ctx, waitingKey(code), identityID).Err()
}

func (s *redisRoomStore) GrantWhiteboard(ctx context.Context, code, identityID string) error {
	return s.addToSet(ctx, wbAccessKey(code), identityID)
}

func (s *redisRoomStore) RevokeWhiteboard(ctx context.Context, code, identityID string) error {
	return s.client.SRem(ctx, wbAccessKey(code), identityID).Err()
}

func (s *redisRoomStore) addToSet(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, roomTTL).Err()
}
