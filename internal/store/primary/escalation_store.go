package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/store"
)

const escalationColumns = `id, cache_key, content, user_context, partial_classification, priority, reason, strategy, provisional_action, status, review, enqueued_at`

// SaveEscalation inserts an escalation, ignoring IDs already present.
func (s *StoreImpl) SaveEscalation(ctx context.Context, item *models.EscalationItem) error {
	content, err := json.Marshal(item.Content)
	if err != nil {
		return fmt.Errorf("failed to encode escalation content: %w", err)
	}
	uc, err := json.Marshal(item.UserContext)
	if err != nil {
		return fmt.Errorf("failed to encode escalation user context: %w", err)
	}
	partial, err := json.Marshal(item.PartialClassification)
	if err != nil {
		return fmt.Errorf("failed to encode partial classification: %w", err)
	}
	status := item.Status
	if status == "" {
		status = models.EscalationStatusPending
	}

	query := `
		INSERT INTO escalations (id, cache_key, content, user_context, partial_classification, priority, reason, strategy, provisional_action, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.db.Exec(ctx, query,
		item.ID, item.CacheKey, content, uc, partial, int(item.Priority),
		item.Reason, item.Strategy, string(item.ProvisionalAction), status, item.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save escalation %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		log.WithField("escalation_id", item.ID).Debug("escalation already stored, skipping insertion")
	}
	return nil
}

func (s *StoreImpl) GetEscalation(ctx context.Context, id string) (*models.EscalationItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = $1`, id)
	item, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("escalation %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get escalation %s: %w", id, err)
	}
	return item, nil
}

func (s *StoreImpl) ListEscalations(ctx context.Context, f store.EscalationFilter) ([]*models.EscalationItem, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + escalationColumns + ` FROM escalations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY priority ASC, enqueued_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	items := []*models.EscalationItem{}
	for rows.Next() {
		item, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalations: %w", err)
	}
	return items, nil
}

// ReviewEscalation marks a pending escalation reviewed in one statement so
// two moderators cannot both close it.
func (s *StoreImpl) ReviewEscalation(ctx context.Context, id string, review models.EscalationReview) (*models.EscalationItem, error) {
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(review)
	if err != nil {
		return nil, fmt.Errorf("failed to encode review: %w", err)
	}
	row := s.db.QueryRow(ctx, `
		UPDATE escalations SET status = $1, review = $2, reviewed_at = $3
		WHERE id = $4 AND status = $5
		RETURNING `+escalationColumns,
		models.EscalationStatusReviewed, raw, review.ReviewedAt, id, models.EscalationStatusPending)
	item, err := scanEscalation(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to review escalation %s: %w", id, err)
	}
	// nothing updated: either unknown or already reviewed
	if _, getErr := s.GetEscalation(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("escalation %s already reviewed: %w", id, store.ErrConflict)
}

func (s *StoreImpl) CountEscalations(ctx context.Context, status string) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM escalations`).Scan(&n)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM escalations WHERE status = $1`, status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return n, nil
}

func scanEscalation(row pgx.Row) (*models.EscalationItem, error) {
	var (
		item                 models.EscalationItem
		content, uc, partial []byte
		review               []byte
		priority             int
		action               string
	)
	if err := row.Scan(&item.ID, &item.CacheKey, &content, &uc, &partial, &priority, &item.Reason,
		&item.Strategy, &action, &item.Status, &review, &item.EnqueuedAt); err != nil {
		return nil, err
	}
	item.Priority = models.Priority(priority)
	item.ProvisionalAction = models.Action(action)
	if err := decodeEscalationJSON(&item, content, uc, partial, review); err != nil {
		return nil, err
	}
	return &item, nil
}

func decodeEscalationJSON(item *models.EscalationItem, content, uc, partial, review []byte) error {
	if err := json.Unmarshal(content, &item.Content); err != nil {
		return fmt.Errorf("failed to decode content: %w", err)
	}
	if err := json.Unmarshal(uc, &item.UserContext); err != nil {
		return fmt.Errorf("failed to decode user context: %w", err)
	}
	if err := json.Unmarshal(partial, &item.PartialClassification); err != nil {
		return fmt.Errorf("failed to decode partial classification: %w", err)
	}
	if len(review) > 0 {
		var r models.EscalationReview
		if err := json.Unmarshal(review, &r); err != nil {
			return fmt.Errorf("failed to decode review: %w", err)
		}
		item.Review = &r
	}
	return nil
}
