package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"curator/internal/metrics"
	"curator/internal/models"
)

// Sink stores escalations durably, e.g. as an asynq task or a store row.
type Sink interface {
	Submit(ctx context.Context, item *models.EscalationItem) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, item *models.EscalationItem) error

func (f SinkFunc) Submit(ctx context.Context, item *models.EscalationItem) error { return f(ctx, item) }

// ForwarderOptions tune retries of failed submissions.
type ForwarderOptions struct {
	MaxRetries  uint64
	BaseBackoff time.Duration
}

// Forwarder drains a Queue into a Sink.
type Forwarder struct {
	queue *Queue
	sink  Sink
	opts  ForwarderOptions
	done  chan struct{}
}

// NewForwarder wires queue to sink.
func NewForwarder(queue *Queue, sink Sink, opts ForwarderOptions) *Forwarder {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	return &Forwarder{queue: queue, sink: sink, opts: opts, done: make(chan struct{})}
}

// Run forwards items until ctx ends or the queue is closed and empty.
func (f *Forwarder) Run(ctx context.Context) {
	defer close(f.done)
	log.Info("escalation forwarder started")
	for {
		item, err := f.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("escalation forwarder stopped")
			}
			return
		}
		f.forward(ctx, item)
	}
}

// Done is closed when Run returns.
func (f *Forwarder) Done() <-chan struct{} { return f.done }

// Drain forwards whatever is still queued, giving up when ctx ends.
func (f *Forwarder) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		item, ok := f.queue.TryDequeue()
		if !ok {
			break
		}
		f.forward(ctx, item)
		n++
	}
	return n
}

func (f *Forwarder) forward(ctx context.Context, item *models.EscalationItem) {
	b := retry.WithMaxRetries(f.opts.MaxRetries, retry.NewFibonacci(f.opts.BaseBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := f.sink.Submit(ctx, item); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	fields := log.Fields{"escalation_id": item.ID, "priority": item.Priority.String()}
	if err != nil {
		metrics.EscalationsForwarded.WithLabelValues("failed").Inc()
		log.WithError(err).WithFields(fields).Error("failed to forward escalation")
		return
	}
	metrics.EscalationsForwarded.WithLabelValues("ok").Inc()
	log.WithFields(fields).Debug("escalation forwarded")
}
