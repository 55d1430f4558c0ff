package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/seojin-dev/chessroom/internal/config"
	"github.com/seojin-dev/chessroom/internal/game"
	"github.com/seojin-dev/chessroom/internal/hub"
	"github.com/seojin-dev/chessroom/internal/msgcat"
	"github.com/seojin-dev/chessroom/internal/obslog"
	"github.com/seojin-dev/chessroom/internal/room"
	"github.com/seojin-dev/chessroom/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		obslog.L().Fatal("store init failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		obslog.L().Fatal("message catalog init failed", zap.Error(err))
	}

	registry := room.NewRegistry(st)
	machine := game.NewMachine(st)
	sessions := hub.NewSessionManager()
	router := hub.NewRouter(sessions)
	dispatcher := hub.NewDispatcher(registry, machine, st, sessions, router, cat, cfg.ChatHistoryLimit)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub.NewHandler(dispatcher, cfg.AllowedOrigins))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obslog.L().Warn("shutdown did not finish cleanly", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		obslog.L().Warn("store close failed", zap.Error(err))
	}
}

func openStore(cfg *appcfg.AppConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedis(cfg.RedisURL, cfg.RoomTTL)
	case "postgres":
		return store.NewPostgres(cfg.DatabaseURL)
	default:
		return store.NewMemory(), nil
	}
}
