// Package memory is an in-process store used when no database is configured
// and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"curator/internal/models"
	"curator/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu          sync.RWMutex
	escalations map[string]*models.EscalationItem
	decisions   []*models.DecisionRecord
	now         func() time.Time
}

func New() *Store {
	return &Store{escalations: make(map[string]*models.EscalationItem), now: time.Now}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) SaveEscalation(_ context.Context, item *models.EscalationItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("escalation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escalations[item.ID]; ok {
		return nil
	}
	cp := copyItem(item)
	if cp.Status == "" {
		cp.Status = models.EscalationStatusPending
	}
	s.escalations[item.ID] = cp
	return nil
}

func (s *Store) GetEscalation(_ context.Context, id string) (*models.EscalationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.escalations[id]
	if !ok {
		return nil, fmt.Errorf("escalation %s: %w", id, store.ErrNotFound)
	}
	return copyItem(item), nil
}

func (s *Store) ListEscalations(_ context.Context, f store.EscalationFilter) ([]*models.EscalationItem, error) {
	s.mu.RLock()
	var out []*models.EscalationItem
	for _, item := range s.escalations {
		if f.Status == "" || item.Status == f.Status {
			out = append(out, copyItem(item))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) ReviewEscalation(_ context.Context, id string, review models.EscalationReview) (*models.EscalationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.escalations[id]
	if !ok {
		return nil, fmt.Errorf("escalation %s: %w", id, store.ErrNotFound)
	}
	if item.Status == models.EscalationStatusReviewed {
		return nil, fmt.Errorf("escalation %s already reviewed: %w", id, store.ErrConflict)
	}
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = s.now().UTC()
	}
	item.Status = models.EscalationStatusReviewed
	item.Review = &review
	return copyItem(item), nil
}

func (s *Store) CountEscalations(_ context.Context, status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.escalations {
		if status == "" || item.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) RecordDecision(_ context.Context, rec *models.DecisionRecord) error {
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now().UTC()
	}
	cp.Layers = append([]string(nil), rec.Layers...)
	s.mu.Lock()
	s.decisions = append(s.decisions, &cp)
	s.mu.Unlock()
	return nil
}

// ListDecisions returns the newest records first.
func (s *Store) ListDecisions(_ context.Context, limit, offset int) ([]*models.DecisionRecord, error) {
	s.mu.RLock()
	out := make([]*models.DecisionRecord, 0, len(s.decisions))
	for i := len(s.decisions) - 1; i >= 0; i-- {
		cp := *s.decisions[i]
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	return page(out, limit, offset), nil
}

func (s *Store) DecisionStats(context.Context) (store.DecisionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := store.DecisionStats{ByAction: map[models.Action]int{}}
	for _, d := range s.decisions {
		st.Total++
		st.ByAction[d.Action]++
		if d.Escalated {
			st.Escalated++
		}
	}
	return st, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func copyItem(in *models.EscalationItem) *models.EscalationItem {
	cp := *in
	cp.PartialClassification = in.PartialClassification.Clone()
	cp.UserContext.VulnerabilityFactors = append([]models.VulnerabilityFactor(nil), in.UserContext.VulnerabilityFactors...)
	if in.Review != nil {
		r := *in.Review
		cp.Review = &r
	}
	return &cp
}
