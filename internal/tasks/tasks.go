// Package tasks defines the asynq task types and payload codecs.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"curator/internal/models"
)

const (
	// TypeEscalationReview carries one escalation to the worker, which
	// persists it for moderators.
	TypeEscalationReview = "escalation:review"
)

// QueuePrefix prefixes the per-band escalation queues.
const QueuePrefix = "escalations_"

// QueueFor names the asynq queue of a priority band.
func QueueFor(p models.Priority) string {
	return QueuePrefix + p.String()
}

// QueueWeights gives more urgent bands a larger share of worker time.
func QueueWeights() map[string]int {
	return map[string]int{
		QueueFor(models.PriorityCritical): 8,
		QueueFor(models.PriorityHigh):     4,
		QueueFor(models.PriorityNormal):   2,
		QueueFor(models.PriorityLow):      1,
	}
}

// NewEscalationTask encodes item as a task routed to its band's queue.
func NewEscalationTask(item *models.EscalationItem) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode escalation %s: %w", item.ID, err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueFor(item.Priority)),
		asynq.TaskID(item.ID),
		asynq.MaxRetry(10),
	}
	return asynq.NewTask(TypeEscalationReview, payload), opts, nil
}

// ParseEscalationTask decodes the payload of an escalation task.
func ParseEscalationTask(t *asynq.Task) (*models.EscalationItem, error) {
	var item models.EscalationItem
	if err := json.Unmarshal(t.Payload(), &item); err != nil {
		return nil, fmt.Errorf("failed to decode escalation payload: %w", err)
	}
	if item.ID == "" {
		return nil, fmt.Errorf("escalation payload has no id")
	}
	return &item, nil
}
