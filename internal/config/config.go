package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver         string
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	SQLitePath       string
	JWTSecret        string
	ServerPort       string
	CORSOrigins      []string
	LogLevel         slog.Level
	Stateless        bool
	PresenceTTL      time.Duration
	TickInterval     time.Duration
	SweepSchedule    string
	ChatHistoryLimit int
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return &Config{
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "postgres"),
		DBName:           getEnv("DB_NAME", "classroom"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "classroom.db"),
		JWTSecret:        getEnv("JWT_SECRET", "super-secret-key-change-me"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:         getLevel("LOG_LEVEL", slog.LevelInfo),
		Stateless:        getBool("STATELESS", false),
		PresenceTTL:      getDuration("PRESENCE_TTL", 30*time.Second),
		TickInterval:     getDuration("TICK_INTERVAL", time.Second),
		SweepSchedule:    getEnv("SWEEP_SCHEDULE", "@every 15s"),
		ChatHistoryLimit: getChatLimit("CHAT_HISTORY_LIMIT"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "default", fallback)
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "default", fallback)
		return fallback
	}
	return v
}

// MaxChatHistory is the most chat messages a room ever keeps.
const MaxChatHistory = 50

// getChatLimit lets deployments keep fewer messages, never more.
func getChatLimit(key string) int {
	v := getInt(key, MaxChatHistory)
	if v > MaxChatHistory {
		slog.Warn("chat history limit capped", "key", key, "requested", v, "max", MaxChatHistory)
		return MaxChatHistory
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "default", fallback)
	return fallback
}

func getLevel(key string, fallback slog.Level) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(getEnv(key, fallback.String()))); err != nil {
		return fallback
	}
	return lvl
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
