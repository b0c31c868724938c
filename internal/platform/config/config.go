package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
	// CORSOrigins is a comma separated allow list; empty means any origin.
	CORSOrigins string
}

// CommentsConfig configures the moderation API client and the engine.
type CommentsConfig struct {
	APIBase     string
	BulkPath    string
	VotePath    string
	APIToken    string
	PageSize    int
	EditWindow  time.Duration
	HTTPTimeout time.Duration
	// BreakerFailures consecutive server failures open the client circuit
	// for BreakerTimeout.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// StoresConfig selects the backends for saved view state.
type StoresConfig struct {
	RedisDSN    string
	DatabaseURL string
	UIStateTTL  time.Duration
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	JWTSecret   string
	NATSURL     string
	HTTP        HTTPConfig
	Comments    CommentsConfig
	Stores      StoresConfig
}

func (c AppConfig) IsProd() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadDotEnv reads the given files (".env" when none are named) into the
// process environment. Missing files are ignored and variables already set
// win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		Env:         strings.ToLower(env("APP_ENV")),
		LogLevel:    env("LOG_LEVEL"),
		JWTSecret:   env("JWT_SECRET"),
		NATSURL:     env("NATS_URL"),
		HTTP: HTTPConfig{
			Addr:        env("HTTP_ADDR"),
			CORSOrigins: env("CORS_ALLOWED_ORIGINS"),
		},
		Comments: CommentsConfig{
			APIBase:  strings.TrimRight(env("COMMENTS_API_BASE"), "/"),
			BulkPath: env("COMMENTS_BULK_PATH"),
			VotePath: env("COMMENTS_VOTE_PATH"),
			APIToken: env("COMMENTS_API_TOKEN"),
		},
		Stores: StoresConfig{
			RedisDSN:    env("REDIS_DSN"),
			DatabaseURL: env("DATABASE_URL"),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Comments.APIBase == "" {
		cfg.Comments.APIBase = "http://localhost:8080/api/comments"
	}
	if cfg.Comments.BulkPath == "" {
		cfg.Comments.BulkPath = "/bulk"
	}
	if cfg.Comments.VotePath == "" {
		cfg.Comments.VotePath = "/vote"
	}

	var err error
	if cfg.Comments.PageSize, err = envInt("COMMENTS_PAGE_SIZE", 20); err != nil {
		return AppConfig{}, err
	}
	if cfg.Comments.EditWindow, err = envDuration("COMMENTS_EDIT_WINDOW", 15*time.Minute); err != nil {
		return AppConfig{}, err
	}
	if cfg.Comments.HTTPTimeout, err = envDuration("COMMENTS_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return AppConfig{}, err
	}
	if cfg.Comments.BreakerFailures, err = envInt("COMMENTS_BREAKER_FAILURES", 5); err != nil {
		return AppConfig{}, err
	}
	if cfg.Comments.BreakerTimeout, err = envDuration("COMMENTS_BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return AppConfig{}, err
	}
	if cfg.Stores.UIStateTTL, err = envDuration("UI_STATE_TTL", 24*time.Hour); err != nil {
		return AppConfig{}, err
	}
	if cfg.IsProd() && cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
