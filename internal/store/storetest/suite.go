// Package storetest runs the same behavioural checks against every store
// backend.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/store"
)

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("escalation lifecycle", func(t *testing.T) { testEscalationLifecycle(t, newStore(t)) })
	t.Run("escalation ordering and paging", func(t *testing.T) { testEscalationListing(t, newStore(t)) })
	t.Run("decision audit log", func(t *testing.T) { testDecisions(t, newStore(t)) })
}

func sampleItem(id string, p models.Priority, at time.Time) *models.EscalationItem {
	return &models.EscalationItem{
		ID:       id,
		CacheKey: "hybrid:" + id,
		Content:  models.ContentItem{ID: "c-" + id, Text: "Guaranteed returns, act now"},
		UserContext: models.UserContext{
			AgeCategory:          models.AgeAdult,
			VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorElderly},
		},
		PartialClassification: models.ClassificationResult{
			Scam: &models.ScamDimension{IsScam: true, ScamConfidence: 0.7, ScamType: models.ScamInvestment, Indicators: []string{"urgency language"}, Confidence: 0.6},
		},
		Priority:          p,
		Reason:            "analysis incomplete",
		Strategy:          "hybrid",
		ProvisionalAction: models.ActionCaution,
		EnqueuedAt:        at.UTC().Truncate(time.Microsecond),
		Status:            models.EscalationStatusPending,
	}
}

func testEscalationLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	item := sampleItem("e1", models.PriorityCritical, now)

	require.NoError(t, s.SaveEscalation(ctx, item))
	// redelivery is a no-op
	require.NoError(t, s.SaveEscalation(ctx, item))

	got, err := s.GetEscalation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, item.Content, got.Content)
	assert.Equal(t, item.PartialClassification, got.PartialClassification)
	assert.Equal(t, models.PriorityCritical, got.Priority)
	assert.True(t, item.EnqueuedAt.Equal(got.EnqueuedAt))
	assert.Nil(t, got.Review)

	_, err = s.GetEscalation(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	review := models.EscalationReview{Action: models.ActionBlock, Reviewer: "mod-1", Note: "confirmed scam"}
	reviewed, err := s.ReviewEscalation(ctx, "e1", review)
	require.NoError(t, err)
	assert.Equal(t, models.EscalationStatusReviewed, reviewed.Status)
	require.NotNil(t, reviewed.Review)
	assert.Equal(t, models.ActionBlock, reviewed.Review.Action)
	assert.False(t, reviewed.Review.ReviewedAt.IsZero())

	_, err = s.ReviewEscalation(ctx, "e1", review)
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.ReviewEscalation(ctx, "missing", review)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.CountEscalations(ctx, models.EscalationStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = s.CountEscalations(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testEscalationListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveEscalation(ctx, sampleItem("low", models.PriorityLow, base)))
	require.NoError(t, s.SaveEscalation(ctx, sampleItem("normal-late", models.PriorityNormal, base.Add(time.Minute))))
	require.NoError(t, s.SaveEscalation(ctx, sampleItem("normal-early", models.PriorityNormal, base)))
	require.NoError(t, s.SaveEscalation(ctx, sampleItem("critical", models.PriorityCritical, base.Add(time.Hour))))
	_, err := s.ReviewEscalation(ctx, "low", models.EscalationReview{Action: models.ActionAllow, Reviewer: "mod"})
	require.NoError(t, err)

	ids := func(items []*models.EscalationItem) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	all, err := s.ListEscalations(ctx, store.EscalationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"critical", "normal-early", "normal-late", "low"}, ids(all))

	pending, err := s.ListEscalations(ctx, store.EscalationFilter{Status: models.EscalationStatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"critical", "normal-early", "normal-late"}, ids(pending))

	paged, err := s.ListEscalations(ctx, store.EscalationFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"normal-early", "normal-late"}, ids(paged))

	empty, err := s.ListEscalations(ctx, store.EscalationFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDecisions(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	actions := []models.Action{models.ActionAllow, models.ActionBlock, models.ActionCaution, models.ActionBlock}
	for i, a := range actions {
		require.NoError(t, s.RecordDecision(ctx, &models.DecisionRecord{
			Fingerprint: fmt.Sprintf("fp-%d", i),
			Action:      a,
			Reason:      "test",
			Confidence:  0.9,
			Strategy:    "hybrid",
			Layers:      []string{"fast_filter", "classifiers"},
			Escalated:   a == models.ActionCaution,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := s.ListDecisions(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "fp-3", recent[0].Fingerprint)
	assert.Equal(t, "fp-2", recent[1].Fingerprint)
	assert.Equal(t, []string{"fast_filter", "classifiers"}, recent[0].Layers)
	assert.NotEmpty(t, recent[0].ID)

	st, err := s.DecisionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.ByAction[models.ActionBlock])
	assert.Equal(t, 1, st.Escalated)
}
