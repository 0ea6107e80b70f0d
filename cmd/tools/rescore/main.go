package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rsummers/bidwatch/internal/catalog"
	"github.com/rsummers/bidwatch/internal/config"
	"github.com/rsummers/bidwatch/internal/db"
	"github.com/rsummers/bidwatch/internal/ingest"
	"github.com/rsummers/bidwatch/internal/logging"
	"github.com/rsummers/bidwatch/internal/match"
	"github.com/rsummers/bidwatch/internal/score"
)

type output struct {
	Scanned int `json:"batch_size"`
	Updated int `json:"updated"`
}

func main() {
	batchSize := flag.Int("batch-size", 500, "rows per batch")
	flag.Parse()

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

	scoring := score.Config{
		NearTermDays:  cfg.Scoring.NearTermDays,
		HighThreshold: cfg.Scoring.HighThreshold,
		SetAsideBonus: cfg.Scoring.SetAsideBonus,
	}
	store := db.NewStore(pool, scoring.HighThreshold)
	pipeline := ingest.NewPipeline(store, nil, match.New(cat), scoring, log)

	updated, err := pipeline.Rescore(ctx, *batchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("rescore failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Scanned: *batchSize, Updated: updated}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
