package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rsummers/bidwatch/internal/config"
	"github.com/rsummers/bidwatch/internal/db"
	"github.com/rsummers/bidwatch/internal/logging"
	"github.com/rsummers/bidwatch/internal/pricing"
)

func main() {
	nsn := flag.String("nsn", "", "national stock number (exact)")
	psc := flag.String("psc", "", "product service code (exact)")
	naics := flag.String("naics", "", "NAICS code (exact)")
	keywords := flag.String("keywords", "", "comma-separated keywords")
	lookback := flag.Int("lookback", pricing.DefaultLookbackDays, "lookback window in days")
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

	store := db.NewStore(pool, cfg.Scoring.HighThreshold)
	engine := pricing.NewEngine(store, log)

	var kws []string
	for _, kw := range strings.Split(*keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}

	result, err := engine.Lookup(ctx, pricing.Query{
		Filters: pricing.Filters{
			NSN:      *nsn,
			PSC:      *psc,
			NAICS:    *naics,
			Keywords: kws,
		},
		LookbackDays: *lookback,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("pricing lookup failed")
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"NSN", "PSC", "NAICS", "Unit Price", "Qty", "Award Date", "Vendor"})
	for _, r := range result.Records {
		t.AppendRow(table.Row{r.NSN, r.PSC, r.NAICS, fmt.Sprintf("%.2f", r.UnitPrice), r.Quantity, r.AwardDate.Format("2006-01-02"), r.VendorID})
	}
	t.Render()

	s := result.Stats
	if s.Count == 0 {
		fmt.Println("\nNo awards in lookback window.")
		return
	}
	fmt.Printf("\n%d awards  min %.2f  max %.2f  mean %.2f  median %.2f", s.Count, s.Min, s.Max, s.Mean, s.Median)
	if s.MostRecent != nil {
		fmt.Printf("  most recent %s", s.MostRecent.Format("2006-01-02"))
	}
	fmt.Println()
}
