package config

import (
	"fmt"
	"os"
	"strings"
)

// Config aggregates the service configuration, loaded from the environment.
type Config struct {
	Addr   string
	DBPath string
}

func Load() (*Config, error) {
	addr, err := loadAddr()
	if err != nil {
		return nil, err
	}

	dbPath := strings.TrimSpace(os.Getenv("DB_PATH"))
	if dbPath == "" {
		dbPath = "tripchat.db"
	}

	if os.Getenv("APP_SECRET") == "" {
		return nil, fmt.Errorf("APP_SECRET must be set")
	}

	return &Config{Addr: addr, DBPath: dbPath}, nil
}

func loadAddr() (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	// Allow passing ":8080" or "127.0.0.1:8080" directly.
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}
