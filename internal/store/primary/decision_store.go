package primary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"curator/internal/models"
	"curator/internal/store"
)

// RecordDecision appends one audit record.
func (s *StoreImpl) RecordDecision(ctx context.Context, rec *models.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	layers := rec.Layers
	if layers == nil {
		layers = []string{}
	}
	query := `
		INSERT INTO decisions (id, fingerprint, content_id, action, reason, confidence, strategy, layers, escalated, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.Fingerprint, rec.ContentID, string(rec.Action), rec.Reason, rec.Confidence,
		rec.Strategy, layers, rec.Escalated, rec.ProcessingTimeMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// ListDecisions returns the newest records first.
func (s *StoreImpl) ListDecisions(ctx context.Context, limit, offset int) ([]*models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, fingerprint, COALESCE(content_id, ''), action, reason, confidence, strategy, layers, escalated, processing_time_ms, created_at
		FROM decisions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	out := []*models.DecisionRecord{}
	for rows.Next() {
		var rec models.DecisionRecord
		var action string
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.ContentID, &action, &rec.Reason, &rec.Confidence,
			&rec.Strategy, &rec.Layers, &rec.Escalated, &rec.ProcessingTimeMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.Action = models.Action(action)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}
	return out, nil
}

func (s *StoreImpl) DecisionStats(ctx context.Context) (store.DecisionStats, error) {
	st := store.DecisionStats{ByAction: map[models.Action]int{}}
	rows, err := s.db.Query(ctx, `SELECT action, COUNT(*), COUNT(*) FILTER (WHERE escalated) FROM decisions GROUP BY action`)
	if err != nil {
		return st, fmt.Errorf("failed to aggregate decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var n, escalated int
		if err := rows.Scan(&action, &n, &escalated); err != nil {
			return st, fmt.Errorf("failed to scan decision stats: %w", err)
		}
		st.ByAction[models.Action(action)] = n
		st.Total += n
		st.Escalated += escalated
	}
	return st, rows.Err()
}
