package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/tasks"
)

// Ensure AsynqJobClient satisfies JobClient
var _ JobClient = (*AsynqJobClient)(nil)

// AsynqJobClient enqueues escalation tasks on Redis through asynq.
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(opt asynq.RedisClientOpt) *AsynqJobClient {
	return &AsynqJobClient{client: asynq.NewClient(opt)}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// EnqueueEscalation enqueues item on its band's queue. The escalation ID is
// the task ID, so enqueuing the same item twice is not an error.
func (jc *AsynqJobClient) EnqueueEscalation(ctx context.Context, item *models.EscalationItem) error {
	if jc.client == nil {
		return fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	task, opts, err := tasks.NewEscalationTask(item)
	if err != nil {
		return err
	}
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			log.WithField("escalation_id", item.ID).Debug("escalation task already enqueued")
			return nil
		}
		return fmt.Errorf("enqueue escalation %s: %w", item.ID, err)
	}
	log.WithFields(log.Fields{"escalation_id": item.ID, "queue": info.Queue}).Debug("enqueued escalation task")
	return nil
}
