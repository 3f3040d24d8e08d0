// Package sqlite is a single-file store for escalations and the decision
// audit log, used for local runs without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"curator/internal/models"
	"curator/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS escalations (
	id                     TEXT PRIMARY KEY,
	cache_key              TEXT NOT NULL,
	content                TEXT NOT NULL,
	user_context           TEXT NOT NULL,
	partial_classification TEXT NOT NULL,
	priority               INTEGER NOT NULL,
	reason                 TEXT NOT NULL,
	strategy               TEXT NOT NULL,
	provisional_action     TEXT NOT NULL,
	status                 TEXT NOT NULL DEFAULT 'pending',
	review                 TEXT,
	enqueued_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS escalations_status_priority_idx ON escalations (status, priority, enqueued_at);

CREATE TABLE IF NOT EXISTS decisions (
	id                 TEXT PRIMARY KEY,
	fingerprint        TEXT NOT NULL,
	content_id         TEXT NOT NULL DEFAULT '',
	action             TEXT NOT NULL,
	reason             TEXT NOT NULL,
	confidence         REAL NOT NULL,
	strategy           TEXT NOT NULL,
	layers             TEXT NOT NULL,
	escalated          INTEGER NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	created_at         TEXT NOT NULL
);
`

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer keeps sqlite free of SQLITE_BUSY under concurrent inserts
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

func (s *Store) SaveEscalation(ctx context.Context, item *models.EscalationItem) error {
	content, uc, partial, err := encodeItem(item)
	if err != nil {
		return err
	}
	status := item.Status
	if status == "" {
		status = models.EscalationStatusPending
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO escalations (id, cache_key, content, user_context, partial_classification, priority, reason, strategy, provisional_action, status, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.CacheKey, content, uc, partial, int(item.Priority), item.Reason, item.Strategy,
		string(item.ProvisionalAction), status, formatTime(item.EnqueuedAt))
	if err != nil {
		return fmt.Errorf("failed to save escalation %s: %w", item.ID, err)
	}
	return nil
}

const escalationColumns = `id, cache_key, content, user_context, partial_classification, priority, reason, strategy, provisional_action, status, review, enqueued_at`

func (s *Store) GetEscalation(ctx context.Context, id string) (*models.EscalationItem, error) {
	item, err := scanEscalation(s.db.QueryRowContext(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("escalation %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get escalation %s: %w", id, err)
	}
	return item, nil
}

func (s *Store) ListEscalations(ctx context.Context, f store.EscalationFilter) ([]*models.EscalationItem, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations`
	var args []interface{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY priority ASC, enqueued_at ASC, id ASC`
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return items, rows.Err()
}

func (s *Store) ReviewEscalation(ctx context.Context, id string, review models.EscalationReview) (*models.EscalationItem, error) {
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(review)
	if err != nil {
		return nil, fmt.Errorf("failed to encode review: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE escalations SET status = ?, review = ? WHERE id = ? AND status = ?`,
		models.EscalationStatusReviewed, string(raw), id, models.EscalationStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to review escalation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to review escalation %s: %w", id, err)
	}
	item, err := s.GetEscalation(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("escalation %s already reviewed: %w", id, store.ErrConflict)
	}
	return item, nil
}

func (s *Store) CountEscalations(ctx context.Context, status string) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalations`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalations WHERE status = ?`, status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return n, nil
}

func (s *Store) RecordDecision(ctx context.Context, rec *models.DecisionRecord) error {
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
	rawLayers, err := json.Marshal(layers)
	if err != nil {
		return fmt.Errorf("failed to encode layers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, fingerprint, content_id, action, reason, confidence, strategy, layers, escalated, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.ContentID, string(rec.Action), rec.Reason, rec.Confidence,
		rec.Strategy, string(rawLayers), rec.Escalated, rec.ProcessingTimeMs, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, limit, offset int) ([]*models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, content_id, action, reason, confidence, strategy, layers, escalated, processing_time_ms, created_at
		FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()
	out := []*models.DecisionRecord{}
	for rows.Next() {
		var (
			rec                     models.DecisionRecord
			action, layers, created string
		)
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.ContentID, &action, &rec.Reason, &rec.Confidence,
			&rec.Strategy, &layers, &rec.Escalated, &rec.ProcessingTimeMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.Action = models.Action(action)
		if err := json.Unmarshal([]byte(layers), &rec.Layers); err != nil {
			return nil, fmt.Errorf("failed to decode layers: %w", err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) DecisionStats(ctx context.Context) (store.DecisionStats, error) {
	st := store.DecisionStats{ByAction: map[models.Action]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*), SUM(escalated) FROM decisions GROUP BY action`)
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEscalation(row scanner) (*models.EscalationItem, error) {
	var (
		item                          models.EscalationItem
		content, uc, partial, enqueue string
		review                        sql.NullString
		priority                      int
		action                        string
	)
	if err := row.Scan(&item.ID, &item.CacheKey, &content, &uc, &partial, &priority, &item.Reason,
		&item.Strategy, &action, &item.Status, &review, &enqueue); err != nil {
		return nil, err
	}
	item.Priority = models.Priority(priority)
	item.ProvisionalAction = models.Action(action)
	var err error
	if item.EnqueuedAt, err = parseTime(enqueue); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &item.Content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	if err := json.Unmarshal([]byte(uc), &item.UserContext); err != nil {
		return nil, fmt.Errorf("failed to decode user context: %w", err)
	}
	if err := json.Unmarshal([]byte(partial), &item.PartialClassification); err != nil {
		return nil, fmt.Errorf("failed to decode partial classification: %w", err)
	}
	if review.Valid && strings.TrimSpace(review.String) != "" {
		var r models.EscalationReview
		if err := json.Unmarshal([]byte(review.String), &r); err != nil {
			return nil, fmt.Errorf("failed to decode review: %w", err)
		}
		item.Review = &r
	}
	return &item, nil
}

func encodeItem(item *models.EscalationItem) (content, uc, partial string, err error) {
	b, err := json.Marshal(item.Content)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode escalation content: %w", err)
	}
	content = string(b)
	if b, err = json.Marshal(item.UserContext); err != nil {
		return "", "", "", fmt.Errorf("failed to encode escalation user context: %w", err)
	}
	uc = string(b)
	if b, err = json.Marshal(item.PartialClassification); err != nil {
		return "", "", "", fmt.Errorf("failed to encode partial classification: %w", err)
	}
	return content, uc, string(b), nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
