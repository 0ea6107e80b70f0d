package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type window struct{ from, to time.Time }

type fakeSource struct {
	mu      sync.Mutex
	open    int
	wins    int
	due     map[window]int
	windows []window

	openErr error
	winsErr error
	dueErr  error
}

func (f *fakeSource) CountOpenOpportunities(_ context.Context, _ time.Time) (int, error) {
	if f.openErr != nil {
		return 0, f.openErr
	}
	return f.open, nil
}

func (f *fakeSource) CountDueBetween(_ context.Context, from, to time.Time) (int, error) {
	if f.dueErr != nil {
		return 0, f.dueErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := window{from, to}
	f.windows = append(f.windows, w)
	return f.due[w], nil
}

func (f *fakeSource) CountRecentWins(_ context.Context, _ time.Time) (int, error) {
	if f.winsErr != nil {
		return 0, f.winsErr
	}
	return f.wins, nil
}

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newAggregator(src Source) *Aggregator {
	a := NewAggregator(src, zerolog.Nop())
	a.now = func() time.Time { return now }
	return a
}

func TestDashboard_MergesAllCounters(t *testing.T) {
	startOfDay := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24*time.Hour - time.Millisecond)
	weekOut := startOfDay.AddDate(0, 0, 7)

	src := &fakeSource{
		open: 42,
		wins: 3,
		due: map[window]int{
			{startOfDay, endOfDay}: 5,
			{startOfDay, weekOut}:  11,
		},
	}

	got := newAggregator(src).Dashboard(context.Background())

	want := Dashboard{TotalOpen: 42, DueToday: 5, DueSoon: 11, RecentWins: 3}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDashboard_DueTodayWindowEndsAtLastMillisecond(t *testing.T) {
	src := &fakeSource{due: map[window]int{}}
	newAggregator(src).Dashboard(context.Background())

	wantEnd := time.Date(2026, 3, 10, 23, 59, 59, 999000000, time.UTC)
	found := false
	for _, w := range src.windows {
		if w.to.Equal(wantEnd) {
			found = true
			if !w.from.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("due-today window must start at midnight, got %v", w.from)
			}
		}
	}
	if !found {
		t.Fatalf("no due-today window ending at %v, saw %v", wantEnd, src.windows)
	}
}

func TestDashboard_FailSoftReturnsZeros(t *testing.T) {
	cases := map[string]*fakeSource{
		"open query fails": {openErr: errors.New("db down"), open: 9, wins: 9, due: map[window]int{}},
		"due query fails":  {dueErr: errors.New("db down"), open: 9, wins: 9},
		"wins query fails": {winsErr: errors.New("db down"), open: 9, due: map[window]int{}},
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			got := newAggregator(src).Dashboard(context.Background())
			if got != (Dashboard{}) {
				t.Fatalf("expected all-zero dashboard, got %+v", got)
			}
		})
	}
}
