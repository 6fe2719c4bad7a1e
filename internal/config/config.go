package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Addr            string
	DatabaseURL     string
	HistoryLimit    int
	ShutdownTimeout time.Duration
}

type CLIConfig struct {
	ServerURL string
}

// LoadServerFromEnv builds the server configuration. PORT (the form hosting
// platforms inject) wins over FOREST_ADDR. DATABASE_URL is optional: without
// it the transaction archive is disabled and the server runs fully in-memory.
func LoadServerFromEnv() ServerConfig {
	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FOREST_ADDR", ":3001")
	}

	return ServerConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HistoryLimit:    envIntDefault("FOREST_HISTORY_LIMIT", 200),
		ShutdownTimeout: envDurationDefault("FOREST_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		ServerURL: strings.TrimRight(envDefault("FOREST_SERVER_URL", "http://localhost:3001"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
