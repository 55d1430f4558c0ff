package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/seojin-dev/chessroom/internal/domain"
)

func newTestRedis(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	t.Cleanup(func() { mr.Close() })
	url := fmt.Sprintf("redis://%s/0", mr.Addr())
	s, err := NewRedis(url, 0)
	if err != nil { t.Fatalf("NewRedis: %v", err) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedis_RoomRoundtrip(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	room := &domain.Room{ID: "r1", Code: "AB12CD", Player1ID: "p1", IsActive: true, CreatedAt: time.Now().UTC()}
	if err := s.CreateRoom(ctx, room); err != nil { t.Fatalf("CreateRoom: %v", err) }

	got, err := s.GetRoom(ctx, "r1")
	if err != nil || got == nil { t.Fatalf("GetRoom: %v", err) }
	if got.Code != "AB12CD" || got.Player1ID != "p1" { t.Fatalf("room = %+v", got) }

	// Code index resolves case-insensitively.
	byCode, err := s.GetRoomByCode(ctx, "ab12cd")
	if err != nil || byCode == nil { t.Fatalf("GetRoomByCode: %v", err) }
	if byCode.ID != "r1" { t.Fatalf("byCode.ID = %q", byCode.ID) }

	got.Player2ID = "p2"
	if err := s.UpdateRoom(ctx, got); err != nil { t.Fatalf("UpdateRoom: %v", err) }
	again, _ := s.GetRoom(ctx, "r1")
	if again.Player2ID != "p2" { t.Fatalf("update not persisted") }
}

func TestRedis_MissingRecordsAreNilNil(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	if r, err := s.GetRoom(ctx, "nope"); err != nil || r != nil { t.Fatalf("GetRoom miss: %v %v", r, err) }
	if r, err := s.GetRoomByCode(ctx, "NOPE42"); err != nil || r != nil { t.Fatalf("GetRoomByCode miss: %v %v", r, err) }
	if g, err := s.GetGame(ctx, "nope"); err != nil || g != nil { t.Fatalf("GetGame miss: %v %v", g, err) }
	if g, err := s.GetGameByRoom(ctx, "nope"); err != nil || g != nil { t.Fatalf("GetGameByRoom miss: %v %v", g, err) }
}

func TestRedis_GameRoundtrip(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	now := time.Now().UTC()
	g := &domain.Game{
		ID: "g1", RoomID: "r1",
		FEN:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Turn: domain.White, Status: domain.StatusWaiting,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateGame(ctx, g); err != nil { t.Fatalf("CreateGame: %v", err) }

	byRoom, err := s.GetGameByRoom(ctx, "r1")
	if err != nil || byRoom == nil { t.Fatalf("GetGameByRoom: %v", err) }
	if byRoom.ID != "g1" { t.Fatalf("byRoom.ID = %q", byRoom.ID) }

	g.Status = domain.StatusActive
	g.MovesUCI = append(g.MovesUCI, "e2e4")
	g.MovesSAN = append(g.MovesSAN, "e4")
	g.Turn = domain.Black
	if err := s.UpdateGame(ctx, g); err != nil { t.Fatalf("UpdateGame: %v", err) }

	got, _ := s.GetGame(ctx, "g1")
	if got.Status != domain.StatusActive || len(got.MovesUCI) != 1 || got.Turn != domain.Black {
		t.Fatalf("game = %+v", got)
	}
}

func TestRedis_ChatOrderAndLimit(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := &domain.ChatMessage{
			ID: fmt.Sprintf("m%d", i), RoomID: "r1", PlayerID: "p1",
			PlayerName: "anna", Message: fmt.Sprintf("hello %d", i),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendChat(ctx, msg); err != nil { t.Fatalf("AppendChat: %v", err) }
	}

	all, err := s.ChatHistory(ctx, "r1", 0)
	if err != nil { t.Fatalf("ChatHistory: %v", err) }
	if len(all) != 5 || all[0].ID != "m0" || all[4].ID != "m4" {
		t.Fatalf("history = %v", all)
	}

	last2, err := s.ChatHistory(ctx, "r1", 2)
	if err != nil { t.Fatalf("ChatHistory limited: %v", err) }
	if len(last2) != 2 || last2[0].ID != "m3" || last2[1].ID != "m4" {
		t.Fatalf("limited history = %v", last2)
	}

	empty, err := s.ChatHistory(ctx, "other", 10)
	if err != nil || len(empty) != 0 { t.Fatalf("empty history: %v %v", empty, err) }
}
