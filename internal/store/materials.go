package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/liteclass/liteclass/internal/models"
)

type redisMaterialStore struct {
	client *redis.Client
}

func (s *redisMaterialStore) Put(ctx context.Context, material *models.Material) error {
	data, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("marshal material: %w", err)
	}
	if err := s.client.Set(ctx, materialKey(material.ID), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("store material: %w", err)
	}
	if err := s.client.SAdd(ctx, materialsKey(material.RoomID), material.ID).Err(); err != nil {
		return fmt.Errorf("index material: %w", err)
	}
	return s.client.Expire(ctx, materialsKey(material.RoomID), roomTTL).Err()
}

func (s *redisMaterialStore) List(ctx context.Context, roomID string) ([]models.Material, error) {
	ids, err := s.client.SMembers(ctx, materialsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}

	materials := make([]models.Material, 0, len(ids))
	for _, id := range ids {
		material, err := s.get(ctx, id)
		if err != nil {
			continue
		}
		materials = append(materials, material.Meta())
	}
	return materials, nil
}

func (s *redisMaterialStore) Get(ctx context.Context, roomID, id string) (*models.Material, error) {
	material, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if material.RoomID != roomID {
		return nil, ErrMaterialNotFound
	}
	return material, nil
}

func (s *redisMaterialStore) Delete(ctx context.Context, roomID, id string) error {
	if err := s.client.SRem(ctx, materialsKey(roomID), id).Err(); err != nil {
		return err
	}
	return s.client.Del(ctx, materialKey(id)).Err()
}

func (s *redisMaterialStore) DeleteForRoom(ctx context.Context, roomID string) error {
	ids, err := s.client.SMembers(ctx, materialsKey(roomID)).Result()
	if err != nil {
		return err
	}
	keys := []string{materialsKey(roomID)}
	for _, id := range ids {
		keys = append(keys, materialKey(id))
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisMaterialStore) get(ctx context.Context, id string) (*models.Material, error) {
	data, err := s.client.Get(ctx, materialKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrMaterialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}

	var material models.Material
	if err := json.Unmarshal([]byte(data), &material); err != nil {
		return nil, fmt.Errorf("parse material: %w", err)
	}
	return &material, nil
}
