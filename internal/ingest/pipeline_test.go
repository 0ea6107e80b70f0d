package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/catalog"
	"github.com/rsummers/bidwatch/internal/feed"
	"github.com/rsummers/bidwatch/internal/match"
	"github.com/rsummers/bidwatch/internal/models"
	"github.com/rsummers/bidwatch/internal/score"
)

type fakeStore struct {
	upserts []models.Opportunity
	batches [][]models.Opportunity
	updates map[uuid.UUID]int
}

func (f *fakeStore) UpsertOpportunity(_ context.Context, o *models.Opportunity) error {
	f.upserts = append(f.upserts, *o)
	return nil
}

func (f *fakeStore) ListOpportunityBatch(_ context.Context, _, offset int) ([]models.Opportunity, error) {
	idx := 0
	seen := 0
	for idx < len(f.batches) && seen < offset {
		seen += len(f.batches[idx])
		idx++
	}
	if idx >= len(f.batches) {
		return nil, nil
	}
	return f.batches[idx], nil
}

func (f *fakeStore) UpdateOpportunityMatch(_ context.Context, id uuid.UUID, score int, _ []string, _ string) error {
	if f.updates == nil {
		f.updates = map[uuid.UUID]int{}
	}
	f.updates[id] = score
	return nil
}

type fakeFeed struct {
	notices   []feed.Notice
	details   map[string]string
	detailErr error
}

func (f *fakeFeed) Search(_ context.Context, _ time.Time, _, offset int) ([]feed.Notice, int, error) {
	if offset >= len(f.notices) {
		return nil, len(f.notices), nil
	}
	return f.notices, len(f.notices), nil
}

func (f *fakeFeed) GetOpportunityDetails(_ context.Context, noticeID string) (*feed.Detail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return &feed.Detail{NoticeID: noticeID, Description: f.details[noticeID]}, nil
}

func testMatcher() *match.Matcher {
	return match.New(catalog.New([]models.CatalogEntry{
		{NSN: "6810-01-234-5678", FSC: "6810", Keywords: []string{"acetone", "solvent"}},
	}))
}

func TestRun_MatchesAndScoresNotices(t *testing.T) {
	store := &fakeStore{}
	fd := &fakeFeed{
		notices: []feed.Notice{
			{NoticeID: "n-1", Title: "Acetone RFQ", SolicitationNumber: "SPE4A6-26-Q-0001", ClassificationCode: "6810"},
			{NoticeID: "n-2", Title: "Lawn care services", ClassificationCode: "S208"},
		},
		details: map[string]string{
			"n-1": "<p>Qty 40 drums, NSN <b>6810-01-234-5678</b>, acetone solvent</p>",
		},
	}

	p := NewPipeline(store, fd, testMatcher(), score.DefaultConfig(), zerolog.Nop())
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.Saved != 2 || stats.Fetched != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Matched != 1 {
		t.Fatalf("expected 1 matched notice, got %d", stats.Matched)
	}

	first := store.upserts[0]
	if len(first.MatchedNSNs) != 1 || first.MatchedNSNs[0] != "6810-01-234-5678" {
		t.Fatalf("unexpected matched NSNs: %v", first.MatchedNSNs)
	}
	if first.Score < 50 {
		t.Fatalf("NSN match must score >= 50, got %d", first.Score)
	}
	if first.MatchedClassCode != "" {
		t.Fatal("class code must stay empty alongside an NSN match")
	}
	if first.Status != models.StatusNew {
		t.Fatalf("ingested opportunities start as new, got %s", first.Status)
	}
	if first.Description == "" {
		t.Fatal("description must be persisted")
	}

	second := store.upserts[1]
	if second.Score != 0 || len(second.MatchedNSNs) != 0 {
		t.Fatalf("unrelated notice must not match: %+v", second)
	}
}

func TestRun_DetailFailureDegradesToSearchPayload(t *testing.T) {
	store := &fakeStore{}
	fd := &fakeFeed{
		notices: []feed.Notice{
			{NoticeID: "n-1", Title: "RFQ", Description: "inline 6810-01-234-5678", ClassificationCode: "6810"},
		},
		detailErr: errors.New("feed timeout"),
	}

	p := NewPipeline(store, fd, testMatcher(), score.DefaultConfig(), zerolog.Nop())
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.DetailFailures != 1 {
		t.Fatalf("expected 1 detail failure, got %d", stats.DetailFailures)
	}
	if stats.Saved != 1 {
		t.Fatal("notice must still be saved on detail failure")
	}
	if len(store.upserts[0].MatchedNSNs) != 1 {
		t.Fatalf("matching must fall back to the search description: %+v", store.upserts[0])
	}
}

func TestRescore_UpdatesOnlyChangedRows(t *testing.T) {
	matched := models.Opportunity{
		ID:          uuid.New(),
		Title:       "Acetone 6810-01-234-5678",
		Score:       70, // stale, will change
		MatchedNSNs: []string{"6810-01-234-5678"},
	}
	unchanged := models.Opportunity{
		ID:    uuid.New(),
		Title: "Nothing relevant",
		Score: 0,
	}
	store := &fakeStore{batches: [][]models.Opportunity{{matched, unchanged}}}

	p := NewPipeline(store, &fakeFeed{}, testMatcher(), score.DefaultConfig(), zerolog.Nop())
	updated, err := p.Rescore(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}

	if updated != 1 {
		t.Fatalf("expected 1 update, got %d", updated)
	}
	if _, ok := store.updates[matched.ID]; !ok {
		t.Fatal("stale row must be rescored")
	}
	if _, ok := store.updates[unchanged.ID]; ok {
		t.Fatal("unchanged row must not be rewritten")
	}
}

func TestSanitizeAndTextExtraction(t *testing.T) {
	html := `<p>Acetone <script>alert(1)</script><b>6810-01-234-5678</b></p>`

	clean := SanitizeHTML(html)
	if strings.Contains(clean, "script") || strings.Contains(clean, "alert") {
		t.Fatalf("script content must be stripped, got %q", clean)
	}
	if got := HTMLToText(clean); got != "Acetone 6810-01-234-5678" {
		t.Fatalf("unexpected text extraction: %q", got)
	}
}
