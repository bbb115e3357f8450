package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultSaveIntervalSeconds = 30
	defaultWorkerPollSeconds   = 1
	defaultClaimLifetimeHours  = 1
)

type Config struct {
	Port             string
	LogLevel         slog.Level
	CameraConfigPath string
	SnapshotPath     string
	SnapshotBackend  string // "file" or "redis"
	SubscriptionsDB  string
	ClaimSignerURL   string
	SenderEmail      string

	SaveIntervalSeconds int
	WorkerPollSeconds   int
	ClaimLifetimeHours  int

	Redis *RedisConfig
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	snapshotPath := os.Getenv("SNAPSHOT_PATH")
	if snapshotPath == "" {
		snapshotPath = "notification_weights.json"
	}

	backend := os.Getenv("SNAPSHOT_BACKEND")
	if backend == "" {
		backend = "file"
	}

	subscriptionsDB := os.Getenv("SUBSCRIPTIONS_DB")
	if subscriptionsDB == "" {
		subscriptionsDB = "subscriptions.db"
	}

	saveInterval := defaultSaveIntervalSeconds
	if v := os.Getenv("SAVE_INTERVAL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			saveInterval = parsed
		}
	}

	pollSeconds := defaultWorkerPollSeconds
	if v := os.Getenv("WORKER_POLL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			pollSeconds = parsed
		}
	}

	claimLifetime := defaultClaimLifetimeHours
	if v := os.Getenv("CLAIM_LIFETIME_HOURS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			claimLifetime = parsed
		}
	}

	redisConfig, err := LoadRedisConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                port,
		LogLevel:            ParseLogLevel(os.Getenv("LOG_LEVEL")),
		CameraConfigPath:    os.Getenv("CAMERA_CONFIG_PATH"),
		SnapshotPath:        snapshotPath,
		SnapshotBackend:     backend,
		SubscriptionsDB:     subscriptionsDB,
		ClaimSignerURL:      os.Getenv("CLAIM_SIGNER_URL"),
		SenderEmail:         os.Getenv("SENDER_EMAIL"),
		SaveIntervalSeconds: saveInterval,
		WorkerPollSeconds:   pollSeconds,
		ClaimLifetimeHours:  claimLifetime,
		Redis:               redisConfig,
	}, nil
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
