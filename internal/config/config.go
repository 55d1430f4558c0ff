package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the server's environment-driven configuration. Only the
// listen address has a hard default; the store backend falls back to the
// in-memory implementation when nothing durable is configured.
type AppConfig struct {
	ListenAddr string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	AllowedOrigins []string

	RoomTTL          time.Duration
	ChatHistoryLimit int

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		StoreBackend:     "memory",
		RoomTTL:          24 * time.Hour,
		ChatHistoryLimit: 100,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND"))); v != "" {
		switch v {
		case "memory", "redis", "postgres":
			cfg.StoreBackend = v
		default:
			return nil, fmt.Errorf("unknown STORE_BACKEND %q", v)
		}
	} else if cfg.RedisURL != "" {
		cfg.StoreBackend = "redis"
	} else if cfg.DatabaseURL != "" {
		cfg.StoreBackend = "postgres"
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("ROOM_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RoomTTL = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("CHAT_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatHistoryLimit = n
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if cfg.StoreBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis store")
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}

	return cfg, nil
}
