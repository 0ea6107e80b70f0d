package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// recentWinsDays is the trailing window for the recent-wins counter.
const recentWinsDays = 30

// Source is the counting surface the aggregator fans out over. The db
// store satisfies it; tests use a fake.
type Source interface {
	CountOpenOpportunities(ctx context.Context, now time.Time) (int, error)
	CountDueBetween(ctx context.Context, from, to time.Time) (int, error)
	CountRecentWins(ctx context.Context, since time.Time) (int, error)
}

// Dashboard is the four dashboard counters. Fields are disjoint, so the
// four queries can write their results with no coordination.
type Dashboard struct {
	TotalOpen  int `json:"totalOpen"`
	DueToday   int `json:"dueToday"`
	DueSoon    int `json:"dueSoon"`
	RecentWins int `json:"recentWins"`
}

type Aggregator struct {
	src Source
	log zerolog.Logger
	now func() time.Time
}

func NewAggregator(src Source, log zerolog.Logger) *Aggregator {
	return &Aggregator{src: src, log: log, now: time.Now}
}

// Dashboard runs the four counter queries concurrently and merges the
// results. Fail-soft: this feeds a non-critical widget, so any query
// failure is logged and all counters come back zero instead of an error.
func (a *Aggregator) Dashboard(ctx context.Context) Dashboard {
	now := a.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24*time.Hour - time.Millisecond)
	weekOut := startOfDay.AddDate(0, 0, 7)
	winsSince := now.AddDate(0, 0, -recentWinsDays)

	var out Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := a.src.CountOpenOpportunities(gctx, now)
		out.TotalOpen = n
		return err
	})
	g.Go(func() error {
		n, err := a.src.CountDueBetween(gctx, startOfDay, endOfDay)
		out.DueToday = n
		return err
	})
	g.Go(func() error {
		n, err := a.src.CountDueBetween(gctx, startOfDay, weekOut)
		out.DueSoon = n
		return err
	})
	g.Go(func() error {
		n, err := a.src.CountRecentWins(gctx, winsSince)
		out.RecentWins = n
		return err
	})

	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Msg("dashboard stats query failed, returning zeros")
		return Dashboard{}
	}

	return out
}
