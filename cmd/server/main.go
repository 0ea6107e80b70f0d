package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rsummers/bidwatch/internal/api"
	"github.com/rsummers/bidwatch/internal/catalog"
	"github.com/rsummers/bidwatch/internal/config"
	"github.com/rsummers/bidwatch/internal/db"
	"github.com/rsummers/bidwatch/internal/feed"
	"github.com/rsummers/bidwatch/internal/ingest"
	"github.com/rsummers/bidwatch/internal/lifecycle"
	"github.com/rsummers/bidwatch/internal/logging"
	"github.com/rsummers/bidwatch/internal/match"
	"github.com/rsummers/bidwatch/internal/pricing"
	"github.com/rsummers/bidwatch/internal/score"
	"github.com/rsummers/bidwatch/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Environment)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("catalog load failed")
	}
	log.Info().Int("entries", cat.Len()).Msg("catalog loaded")

	scoring := score.Config{
		NearTermDays:  cfg.Scoring.NearTermDays,
		HighThreshold: cfg.Scoring.HighThreshold,
		SetAsideBonus: cfg.Scoring.SetAsideBonus,
	}

	store := db.NewStore(pool, scoring.HighThreshold)
	matcher := match.New(cat)
	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.APIKey, log)
	pipeline := ingest.NewPipeline(store, feedClient, matcher, scoring, log)

	srv := api.NewServer(api.Deps{
		Store:       store,
		Lifecycle:   lifecycle.NewManager(store, log),
		Pricing:     pricing.NewEngine(store, log),
		Stats:       stats.NewAggregator(store, log),
		Feed:        feedClient,
		Ingest:      pipeline,
		AdminSecret: cfg.AdminSecret,
		Log:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("server starting")
	if err := srv.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
