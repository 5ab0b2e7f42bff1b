package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liteclass/liteclass/config"
)

// roomTTL auto-expires every room-scoped key; abandoned rooms vanish on
// their own.
const roomTTL = 24 * time.Hour

// Connect initializes the Redis client shared by all stores.
func Connect(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedis returns the full store set backed by one Redis client.
func NewRedis(client *redis.Client) Stores {
	return Stores{
		Rooms:      &redisRoomStore{client: client},
		Polls:      &redisPollStore{client: client},
		Whiteboard: &redisWhiteboardStore{client: client},
		Materials:  &redisMaterialStore{client: client},
	}
}

// Key layout, all under the room's TTL:
//
//	room:<code>               room document (JSON)
//	room:<code>:participants  admitted identity set
//	room:<code>:waiting       waiting-room identity set
//	room:<code>:wbaccess      whiteboard write grant set
//	room:<code>:wb            whiteboard log (list of JSON entries)
//	room:<code>:poll          active poll id
//	room:<code>:materials     material id set
//	poll:<id>                 poll document (JSON, votes excluded)
//	poll:<id>:votes           votes hash (identity -> option index)
//	material:<id>             material document (JSON)
func roomKey(code string) string         { return "room:" + code }
func participantsKey(code string) string { return "room:" + code + ":participants" }
func waitingKey(code string) string      { return "room:" + code + ":waiting" }
func wbAccessKey(code string) string     { return "room:" + code + ":wbaccess" }
func wbLogKey(code string) string        { return "room:" + code + ":wb" }
func activePollKey(code string) string   { return "room:" + code + ":poll" }
func materialsKey(code string) string    { return "room:" + code + ":materials" }
func pollKey(id string) string           { return "poll:" + id }
func pollVotesKey(id string) string      { return "poll:" + id + ":votes" }
func materialKey(id string) string       { return "material:" + id }
