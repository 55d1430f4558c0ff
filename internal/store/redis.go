package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seojin-dev/chessroom/internal/domain"
)

const defaultTTL = 24 * time.Hour

// redisStore keeps rooms/games as JSON values and chat as a list, all under
// a shared TTL so abandoned rooms age out on their own.
type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to a redis:// URL and pings it before returning. A
// non-positive ttl falls back to 24 hours.
func NewRedis(redisURL string, ttl time.Duration) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *redisStore) keyRoom(id string) string       { return "room:" + strings.TrimSpace(id) }
func (s *redisStore) keyRoomCode(code string) string { return "room:code:" + strings.ToUpper(strings.TrimSpace(code)) }
func (s *redisStore) keyGame(id string) string       { return "game:" + strings.TrimSpace(id) }
func (s *redisStore) keyGameRoom(roomID string) string { return "game:room:" + strings.TrimSpace(roomID) }
func (s *redisStore) keyChat(roomID string) string   { return "chat:" + strings.TrimSpace(roomID) }

func (s *redisStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	raw, err := json.Marshal(room)
	if err != nil { return err }
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyRoom(room.ID), raw, s.ttl)
	pipe.Set(ctx, s.keyRoomCode(room.Code), room.ID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	raw, err := s.rdb.Get(ctx, s.keyRoom(id)).Bytes()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	var r domain.Room
	if err := json.Unmarshal(raw, &r); err != nil { return nil, err }
	return &r, nil
}

func (s *redisStore) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	id, err := s.rdb.Get(ctx, s.keyRoomCode(code)).Result()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	return s.GetRoom(ctx, id)
}

func (s *redisStore) UpdateRoom(ctx context.Context, room *domain.Room) error {
	raw, err := json.Marshal(room)
	if err != nil { return err }
	return s.rdb.Set(ctx, s.keyRoom(room.ID), raw, s.ttl).Err()
}

func (s *redisStore) CreateGame(ctx context.Context, game *domain.Game) error {
	raw, err := json.Marshal(game)
	if err != nil { return err }
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyGame(game.ID), raw, s.ttl)
	pipe.Set(ctx, s.keyGameRoom(game.RoomID), game.ID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	raw, err := s.rdb.Get(ctx, s.keyGame(id)).Bytes()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil { return nil, err }
	return &g, nil
}

func (s *redisStore) GetGameByRoom(ctx context.Context, roomID string) (*domain.Game, error) {
	id, err := s.rdb.Get(ctx, s.keyGameRoom(roomID)).Result()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	return s.GetGame(ctx, id)
}

func (s *redisStore) UpdateGame(ctx context.Context, game *domain.Game) error {
	raw, err := json.Marshal(game)
	if err != nil { return err }
	return s.rdb.Set(ctx, s.keyGame(game.ID), raw, s.ttl).Err()
}

func (s *redisStore) AppendChat(ctx context.Context, msg *domain.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil { return err }
	key := s.keyChat(msg.RoomID)
	if err := s.rdb.RPush(ctx, key, raw).Err(); err != nil { return err }
	return s.rdb.Expire(ctx, key, s.ttl).Err()
}

func (s *redisStore) ChatHistory(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	rows, err := s.rdb.LRange(ctx, s.keyChat(roomID), start, -1).Result()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	out := make([]*domain.ChatMessage, 0, len(rows))
	for _, raw := range rows {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil { return nil, err }
		out = append(out, &m)
	}
	return out, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil { return nil }
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil { return nil, err }
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil { db = n }
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
