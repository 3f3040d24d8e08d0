package models

import "time"

/*
Escalation status constants. An item starts pending and becomes reviewed only
through a moderator verdict.
*/
const (
	EscalationStatusPending  = "pending"
	EscalationStatusReviewed = "reviewed"
)

// EscalationItem is handed to human moderators when no layer reached the
// confidence floor of the active strategy.
type EscalationItem struct {
	ID                    string               `json:"id"`
	CacheKey              string               `json:"cacheKey"`
	Content               ContentItem          `json:"content"`
	UserContext           UserContext          `json:"userContext"`
	PartialClassification ClassificationResult `json:"partialClassification"`
	Priority              Priority             `json:"priority"`
	Reason                string               `json:"reason"`
	Strategy              string               `json:"strategy"`
	ProvisionalAction     Action               `json:"provisionalAction"`
	EnqueuedAt            time.Time            `json:"enqueuedAt"`
	Status                string               `json:"status"`
	Review                *EscalationReview    `json:"review,omitempty"`
}

// EscalationReview is the moderator verdict that closes an escalation.
type EscalationReview struct {
	Action     Action    `json:"action"`
	Reviewer   string    `json:"reviewer"`
	Note       string    `json:"note,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

// Validate checks a verdict before it is applied.
func (r EscalationReview) Validate() error {
	if !r.Action.Valid() {
		return &InvalidInputError{Field: "action", Reason: "must be allow, caution or block"}
	}
	if r.Reviewer == "" {
		return &InvalidInputError{Field: "reviewer", Reason: "is required"}
	}
	return nil
}
