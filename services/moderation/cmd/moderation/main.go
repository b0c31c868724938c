package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/platform/auth"
	"github.com/example/oblivion-comments/internal/platform/config"
	"github.com/example/oblivion-comments/internal/platform/httpserver"
	"github.com/example/oblivion-comments/internal/platform/logging"
	"github.com/example/oblivion-comments/internal/platform/run"
	"github.com/example/oblivion-comments/services/moderation/internal/app"
	"github.com/example/oblivion-comments/services/moderation/internal/handlers"
	"github.com/example/oblivion-comments/services/moderation/internal/store"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	// The backend keeps everything in memory; it exists for local runs.
	if cfg.IsProd() {
		log.Error("the moderation dev backend refuses to run with APP_ENV=production")
		_ = log.Sync()
		run.Exit(1)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, every authenticated route will reject requests")
	}

	comments := store.NewInMemoryCommentStore()
	if d := strings.TrimSpace(os.Getenv("MODERATION_SEED_DISCUSSION")); d != "" {
		n := seed(context.Background(), comments, d, envInt("MODERATION_SEED_COUNT", 25))
		log.Info("seeded discussion", zap.String("discussion_id", d), zap.Int("comments", n))
	}

	r := app.NewRouter(app.Deps{
		Comments:    comments,
		Verifier:    auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Policy:      handlers.Policy{AutoApprove: envBool("MODERATION_AUTO_APPROVE")},
		Logger:      log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		return srv.Serve(ctx, log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// seed fills a discussion with a mix of statuses and a few replies so the
// engine has something to page through.
func seed(ctx context.Context, cs store.CommentStore, discussionID string, n int) int {
	statuses := []model.Status{
		model.StatusApproved, model.StatusApproved, model.StatusApproved,
		model.StatusPending, model.StatusSpam,
	}
	created := 0
	var last model.ID
	for i := 1; i <= n; i++ {
		c := model.Comment{
			DiscussionID: discussionID,
			Author:       model.Author{ID: "seed-" + strconv.Itoa(i%4), DisplayName: "Reader " + strconv.Itoa(i%4)},
			Content:      "Seed comment #" + strconv.Itoa(i),
			Status:       statuses[i%len(statuses)],
		}
		if i%5 == 0 && last != "" {
			c.ParentID = last
		}
		out, err := cs.Create(ctx, c)
		if err != nil {
			continue
		}
		if out.ParentID == "" {
			last = out.ID
		}
		created++
	}
	return created
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}
