package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/seojin-dev/chessroom/internal/domain"
)

// pgStore is the durable Store backend. Games are upserted so the final
// record of a finished match always reflects the last committed state.
type pgStore struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &pgStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pgStore) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS rooms (
			id         TEXT PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			player1_id TEXT NOT NULL DEFAULT '',
			player2_id TEXT NOT NULL DEFAULT '',
			is_active  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS games (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL UNIQUE REFERENCES rooms(id),
			fen        TEXT NOT NULL,
			turn       TEXT NOT NULL,
			status     TEXT NOT NULL,
			winner     TEXT NOT NULL DEFAULT '',
			moves_uci  JSONB NOT NULL DEFAULT '[]',
			moves_san  JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS chat_messages (
			id          TEXT PRIMARY KEY,
			room_id     TEXT NOT NULL REFERENCES rooms(id),
			player_id   TEXT NOT NULL,
			player_name TEXT NOT NULL,
			message     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_room ON chat_messages (room_id, created_at)`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *pgStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	const q = `INSERT INTO rooms (id, code, player1_id, player2_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, q, room.ID, strings.ToUpper(room.Code), room.Player1ID, room.Player2ID, room.IsActive, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *pgStore) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	const q = `SELECT id, code, player1_id, player2_id, is_active, created_at FROM rooms WHERE id = $1`
	return s.scanRoom(s.db.QueryRowContext(ctx, q, id))
}

func (s *pgStore) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	const q = `SELECT id, code, player1_id, player2_id, is_active, created_at FROM rooms WHERE code = $1`
	return s.scanRoom(s.db.QueryRowContext(ctx, q, strings.ToUpper(strings.TrimSpace(code))))
}

func (s *pgStore) scanRoom(row *sql.Row) (*domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.Code, &r.Player1ID, &r.Player2ID, &r.IsActive, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select room: %w", err)
	}
	return &r, nil
}

func (s *pgStore) UpdateRoom(ctx context.Context, room *domain.Room) error {
	const q = `UPDATE rooms SET player1_id = $2, player2_id = $3, is_active = $4 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, room.ID, room.Player1ID, room.Player2ID, room.IsActive)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

func (s *pgStore) CreateGame(ctx context.Context, game *domain.Game) error {
	return s.upsertGame(ctx, game, "insert game")
}

func (s *pgStore) UpdateGame(ctx context.Context, game *domain.Game) error {
	return s.upsertGame(ctx, game, "update game")
}

func (s *pgStore) upsertGame(ctx context.Context, game *domain.Game, op string) error {
	movesUCI, _ := json.Marshal(game.MovesUCI)
	movesSAN, _ := json.Marshal(game.MovesSAN)
	const q = `INSERT INTO games (id, room_id, fen, turn, status, winner, moves_uci, moves_san, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			fen = EXCLUDED.fen,
			turn = EXCLUDED.turn,
			status = EXCLUDED.status,
			winner = EXCLUDED.winner,
			moves_uci = EXCLUDED.moves_uci,
			moves_san = EXCLUDED.moves_san,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, q,
		game.ID, game.RoomID, game.FEN, string(game.Turn), string(game.Status), string(game.Winner),
		movesUCI, movesSAN, game.CreatedAt, game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *pgStore) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	const q = `SELECT id, room_id, fen, turn, status, winner, moves_uci, moves_san, created_at, updated_at
		FROM games WHERE id = $1`
	return s.scanGame(s.db.QueryRowContext(ctx, q, id))
}

func (s *pgStore) GetGameByRoom(ctx context.Context, roomID string) (*domain.Game, error) {
	const q = `SELECT id, room_id, fen, turn, status, winner, moves_uci, moves_san, created_at, updated_at
		FROM games WHERE room_id = $1`
	return s.scanGame(s.db.QueryRowContext(ctx, q, roomID))
}

func (s *pgStore) scanGame(row *sql.Row) (*domain.Game, error) {
	var (
		g            domain.Game
		turn, status string
		winner       string
		movesUCIJSON []byte
		movesSANJSON []byte
	)
	err := row.Scan(&g.ID, &g.RoomID, &g.FEN, &turn, &status, &winner, &movesUCIJSON, &movesSANJSON, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	g.Turn = domain.Color(turn)
	g.Status = domain.Status(status)
	g.Winner = domain.Color(winner)
	if err := json.Unmarshal(movesUCIJSON, &g.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &g, nil
}

func (s *pgStore) AppendChat(ctx context.Context, msg *domain.ChatMessage) error {
	const q = `INSERT INTO chat_messages (id, room_id, player_id, player_name, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, q, msg.ID, msg.RoomID, msg.PlayerID, msg.PlayerName, msg.Message, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *pgStore) ChatHistory(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, room_id, player_id, player_name, message, created_at
		FROM (
			SELECT id, room_id, player_id, player_name, message, created_at
			FROM chat_messages WHERE room_id = $1
			ORDER BY created_at DESC LIMIT $2
		) latest
		ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ChatMessage, 0, limit)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.PlayerID, &m.PlayerName, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *pgStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
