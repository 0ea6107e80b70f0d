package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/db"
	"github.com/rsummers/bidwatch/internal/models"
)

type fakeRepo struct {
	lastStatus models.Status
	lastReason *string
	known      map[uuid.UUID]bool
}

func (f *fakeRepo) UpdateOpportunityStatus(_ context.Context, id uuid.UUID, status models.Status, reason *string) (*models.Opportunity, error) {
	if !f.known[id] {
		return nil, db.ErrNotFound
	}
	f.lastStatus = status
	f.lastReason = reason
	return &models.Opportunity{ID: id, Status: status, UpdatedAt: time.Now()}, nil
}

func TestSetStatus_InvalidValueRejected(t *testing.T) {
	m := NewManager(&fakeRepo{}, zerolog.Nop())

	_, err := m.SetStatus(context.Background(), uuid.New(), "bogus", "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	for _, want := range []string{"new", "reviewed", "imported", "dismissed"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error must name allowed value %q: %s", want, err)
		}
	}
}

func TestSetStatus_UnknownIDNotFound(t *testing.T) {
	m := NewManager(&fakeRepo{}, zerolog.Nop())

	_, err := m.SetStatus(context.Background(), uuid.New(), models.StatusReviewed, "")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatus_ReasonOnlyKeptWhenDismissed(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepo{known: map[uuid.UUID]bool{id: true}}
	m := NewManager(repo, zerolog.Nop())

	if _, err := m.SetStatus(context.Background(), id, models.StatusDismissed, "  no bid, OEM only  "); err != nil {
		t.Fatal(err)
	}
	if repo.lastReason == nil || *repo.lastReason != "no bid, OEM only" {
		t.Fatalf("expected trimmed reason, got %v", repo.lastReason)
	}

	if _, err := m.SetStatus(context.Background(), id, models.StatusReviewed, "stale reason"); err != nil {
		t.Fatal(err)
	}
	if repo.lastReason != nil {
		t.Fatalf("reason must be cleared for non-dismissed status, got %q", *repo.lastReason)
	}
}

func TestSetStatus_AnyToAnyPermitted(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepo{known: map[uuid.UUID]bool{id: true}}
	m := NewManager(repo, zerolog.Nop())

	// dismissed -> new is a deliberate escape hatch for operator mistakes.
	for _, status := range []models.Status{models.StatusDismissed, models.StatusNew, models.StatusImported} {
		upd, err := m.SetStatus(context.Background(), id, status, "why not")
		if err != nil {
			t.Fatalf("transition to %s failed: %v", status, err)
		}
		if upd.Status != status {
			t.Fatalf("expected %s, got %s", status, upd.Status)
		}
	}
}
