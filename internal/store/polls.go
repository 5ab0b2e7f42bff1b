package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/liteclass/liteclass/internal/models"
)

type redisPollStore struct {
	client *redis.Client
}

// Poll documents exclude the vote set; votes live in a hash keyed by
// identity so HSetNX enforces one vote per voter atomically.
func (s *redisPollStore) Create(ctx context.Context, poll *models.Poll) error {
	doc := *poll
	doc.Votes = nil
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal poll: %w", err)
	}

	if err := s.client.Set(ctx, pollKey(poll.ID), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("store poll: %w", err)
	}
	if err := s.client.Set(ctx, activePollKey(poll.RoomID), poll.ID, roomTTL).Err(); err != nil {
		return fmt.Errorf("store active poll pointer: %w", err)
	}
	return nil
}

func (s *redisPollStore) Get(ctx context.Context, id string) (*models.Poll, error) {
	data, err := s.client.Get(ctx, pollKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load poll: %w", err)
	}

	var poll models.Poll
	if err := json.Unmarshal([]byte(data), &poll); err != nil {
		return nil, fmt.Errorf("parse poll: %w", err)
	}

	votes, err := s.client.HGetAll(ctx, pollVotesKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	for voter, idx := range votes {
		optionIndex, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}
		poll.Votes = append(poll.Votes, models.Vote{UserID: voter, OptionIndex: optionIndex})
	}
	return &poll, nil
}

func (s *redisPollStore) AddVote(ctx context.Context, pollID, voterID string, optionIndex int) (bool, error) {
	added, err := s.client.HSetNX(ctx, pollVotesKey(pollID), voterID, optionIndex).Result()
	if err != nil {
		return false, fmt.Errorf("store vote: %w", err)
	}
	if added {
		if err := s.client.Expire(ctx, pollVotesKey(pollID), roomTTL).Err(); err != nil {
			return true, err
		}
	}
	return added, nil
}

func (s *redisPollStore) Close(ctx context.Context, id string) error {
	poll, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	poll.IsActive = false

	doc := *poll
	doc.Votes = nil
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal poll: %w", err)
	}
	if err := s.client.Set(ctx, pollKey(id), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("store poll: %w", err)
	}
	// Drop the active pointer only if it still references this poll.
	current, err := s.client.Get(ctx, activePollKey(poll.RoomID)).Result()
	if err == nil && current == id {
		return s.client.Del(ctx, activePollKey(poll.RoomID)).Err()
	}
	return nil
}

func (s *redisPollStore) ActiveForRoom(ctx context.Context, roomID string) (*models.Poll, error) {
	id, err := s.client.Get(ctx, activePollKey(roomID)).Result()
	if err == redis.Nil {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load active poll pointer: %w", err)
	}

	poll, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !poll.IsActive {
		return nil, ErrPollNotFound
	}
	return poll, nil
}

func (s *redisPollStore) DeleteForRoom(ctx context.Context, roomID string) error {
	id, err := s.client.Get(ctx, activePollKey(roomID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.Del(ctx, pollKey(id), pollVotesKey(id), activePollKey(roomID)).Err()
}
