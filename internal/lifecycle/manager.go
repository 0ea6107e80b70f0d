package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/models"
)

// ErrInvalidStatus is returned when the target status is not one of the
// recognized values. Handlers surface it as a 400.
var ErrInvalidStatus = errors.New("invalid status")

// Repository is the persistence surface the manager needs. The db store
// satisfies it; tests use a fake.
type Repository interface {
	UpdateOpportunityStatus(ctx context.Context, id uuid.UUID, status models.Status, reason *string) (*models.Opportunity, error)
}

// StatusUpdate is the confirmation returned after a successful change.
type StatusUpdate struct {
	ID     uuid.UUID     `json:"id"`
	Status models.Status `json:"status"`
}

// Manager validates and persists review-status changes. Transitions are
// a total function over the recognized values: any valid status may
// replace any other, so operators can undo mistakes (including pulling a
// dismissed opportunity back to new). Only the value is checked.
type Manager struct {
	repo Repository
	log  zerolog.Logger
}

func NewManager(repo Repository, log zerolog.Logger) *Manager {
	return &Manager{repo: repo, log: log}
}

// SetStatus updates one opportunity's status. The dismissal reason is
// persisted only when the target status is dismissed; any other target
// clears it.
func (m *Manager) SetStatus(ctx context.Context, id uuid.UUID, status models.Status, reason string) (*StatusUpdate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q is not one of %s", ErrInvalidStatus, status, allowedStatusList())
	}

	var reasonPtr *string
	if status == models.StatusDismissed && strings.TrimSpace(reason) != "" {
		trimmed := strings.TrimSpace(reason)
		reasonPtr = &trimmed
	}

	opp, err := m.repo.UpdateOpportunityStatus(ctx, id, status, reasonPtr)
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("opportunity_id", opp.ID.String()).
		Str("status", string(opp.Status)).
		Msg("status updated")

	return &StatusUpdate{ID: opp.ID, Status: opp.Status}, nil
}

// allowedStatusList renders the recognized values for error messages.
func allowedStatusList() string {
	names := make([]string, 0, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
