// Package worker holds the asynq handlers run by the worker process.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"curator/internal/store"
	"curator/internal/tasks"
)

// EscalationDeps holds what the escalation handler needs.
type EscalationDeps struct {
	Store store.EscalationStore
}

// RegisterHandlers wires every task type onto mux.
func RegisterHandlers(mux *asynq.ServeMux, deps EscalationDeps) {
	log.Infof("Registering %s handler", tasks.TypeEscalationReview)
	mux.HandleFunc(tasks.TypeEscalationReview, HandleEscalationReview(deps))
}

// HandleEscalationReview persists an escalation so moderators can list and
// review it. Redelivery of the same item is harmless.
func HandleEscalationReview(deps EscalationDeps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		item, err := tasks.ParseEscalationTask(t)
		if err != nil {
			// a malformed payload never gets better
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger := log.WithFields(log.Fields{
			"escalation_id": item.ID,
			"priority":      item.Priority.String(),
			"strategy":      item.Strategy,
		})
		if err := deps.Store.SaveEscalation(ctx, item); err != nil {
			logger.WithError(err).Warn("failed to persist escalation, will retry")
			return fmt.Errorf("failed to persist escalation %s: %w", item.ID, err)
		}
		logger.Info("escalation stored for review")
		return nil
	}
}
