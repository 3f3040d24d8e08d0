package store

import (
	"context"

	"curator/internal/models"
)

// --- Job Client ---

// JobClient hands escalations to the background queue.
type JobClient interface {
	EnqueueEscalation(ctx context.Context, item *models.EscalationItem) error
	Close() error
}

// --- Escalation Store ---

// EscalationFilter selects escalations for listing. An empty Status matches
// every status.
type EscalationFilter struct {
	Status string
	Limit  int
	Offset int
}

type EscalationStore interface {
	// SaveEscalation inserts an item. Saving an ID that already exists is a
	// no-op so redelivered tasks stay idempotent.
	SaveEscalation(ctx context.Context, item *models.EscalationItem) error
	GetEscalation(ctx context.Context, id string) (*models.EscalationItem, error)
	// ListEscalations returns the most urgent, then oldest, items first.
	ListEscalations(ctx context.Context, filter EscalationFilter) ([]*models.EscalationItem, error)
	// ReviewEscalation closes a pending item. It returns ErrNotFound for an
	// unknown ID and ErrConflict if the item was already reviewed.
	ReviewEscalation(ctx context.Context, id string, review models.EscalationReview) (*models.EscalationItem, error)
	CountEscalations(ctx context.Context, status string) (int, error)
}

// --- Decision Store ---

// DecisionStats aggregates the audit log.
type DecisionStats struct {
	Total     int                   `json:"total"`
	ByAction  map[models.Action]int `json:"byAction"`
	Escalated int                   `json:"escalated"`
}

type DecisionStore interface {
	RecordDecision(ctx context.Context, rec *models.DecisionRecord) error
	ListDecisions(ctx context.Context, limit, offset int) ([]*models.DecisionRecord, error)
	DecisionStats(ctx context.Context) (DecisionStats, error)
}

// Store is implemented by every backend.
type Store interface {
	EscalationStore
	DecisionStore
	Ping(ctx context.Context) error
	Close() error
}
