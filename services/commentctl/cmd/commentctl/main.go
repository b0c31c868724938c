package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/uistate"
	"github.com/example/oblivion-comments/internal/platform/config"
	"github.com/example/oblivion-comments/internal/platform/events"
	"github.com/example/oblivion-comments/internal/platform/logging"
	"github.com/example/oblivion-comments/internal/platform/natsconn"
	"github.com/example/oblivion-comments/internal/platform/run"
	"github.com/example/oblivion-comments/services/commentctl/internal/cli"
)

func main() {
	run.Exit(runCLI())
}

// runCLI keeps the deferred cleanups ahead of the process exit.
func runCLI() int {
	config.LoadDotEnv()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "commentctl")
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cli.Env{Config: cfg, Logger: log, Out: os.Stdout}

	ui, err := uistate.NewStore(cfg.Stores.RedisDSN, cfg.Stores.DatabaseURL, cfg.Stores.UIStateTTL, cfg.IsProd())
	if err != nil {
		log.Error("ui state store", zap.Error(err))
		return 1
	}
	env.UIState = ui

	// Events are optional for a terminal client.
	if cfg.NATSURL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: "commentctl", Logger: log})
		if err != nil {
			log.Warn("nats unavailable, events disabled", zap.Error(err))
		} else {
			defer nc.Close()
			js, err := natsconn.JetStream(nc)
			if err == nil {
				err = events.EnsureStream(js)
			}
			if err != nil {
				log.Warn("jetstream unavailable, events disabled", zap.Error(err))
			} else {
				env.Events = events.New(js, log)
				defer func() {
					select {
					case <-js.PublishAsyncComplete():
					case <-time.After(5 * time.Second):
						log.Warn("pending events not acknowledged before exit")
					}
				}()
			}
		}
	}

	return cli.Main(ctx, env, os.Args[1:])
}
