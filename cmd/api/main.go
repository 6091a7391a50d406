/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/github"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/jira"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/openai"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/telegram"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	httpx "github.com/syedmustafan/smart-work-sequencer-backend/internal/http"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/jobs"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/logger"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/repo"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := repo.Migrate(cfg.DBDSN, cfg.MigrationsDir, log); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()
	repository := repo.NewRepository(db, log)

	// Adapters
	gh := github.NewClient(cfg, log)
	jc := jira.NewClient(cfg, log)
	llm := openai.NewClient(cfg, log)
	var notifier services.Notifier
	if tg := telegram.NewClient(cfg, log); tg.Enabled() {
		notifier = tg
	}

	tokens := services.StaticTokens{Github: cfg.GithubToken, Jira: cfg.JiraAPIToken}
	svc := services.New(cfg, log, repository, gh, jc, llm, tokens, notifier)

	// HTTP server (Gin)
	router := httpx.NewRouter(cfg, log, svc)

	// Cron
	cr := jobs.NewCron(cfg, log, svc, repository)
	cr.Start()
	defer cr.Stop()

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	time.Sleep(500 * time.Millisecond)
}
