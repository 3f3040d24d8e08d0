// Package escalation queues low-confidence decisions for human review, one
// FIFO band per priority, and forwards them to durable storage.
package escalation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"curator/internal/metrics"
	"curator/internal/models"
)

// DefaultBandCapacity is the per-band capacity when none is configured.
const DefaultBandCapacity = 256

// ErrQueueClosed is returned by Dequeue after Close.
var ErrQueueClosed = errors.New("escalation queue closed")

// Queue is a bounded multi-band queue. Enqueue never blocks; Dequeue returns
// the oldest item of the most urgent non-empty band.
type Queue struct {
	bands  [models.NumPriorities]chan *models.EscalationItem
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
	now    func() time.Time
}

// NewQueue creates a queue whose bands each hold capacity items.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultBandCapacity
	}
	q := &Queue{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
		now:    time.Now,
	}
	for i := range q.bands {
		q.bands[i] = make(chan *models.EscalationItem, capacity)
	}
	return q
}

// Enqueue adds item to its priority band. It fills in ID, EnqueuedAt and
// Status when unset and reports false if the band was full and the item was
// dropped.
func (q *Queue) Enqueue(item *models.EscalationItem) bool {
	if item == nil {
		return false
	}
	p := item.Priority
	if p < models.PriorityCritical || p > models.PriorityLow {
		p = models.PriorityNormal
		item.Priority = p
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = q.now().UTC()
	}
	if item.Status == "" {
		item.Status = models.EscalationStatusPending
	}

	select {
	case q.bands[p] <- item:
	default:
		metrics.EscalationsDropped.WithLabelValues(p.String()).Inc()
		log.WithFields(log.Fields{
			"escalation_id": item.ID,
			"priority":      p.String(),
			"reason":        item.Reason,
		}).Error("escalation band full, dropping item")
		return false
	}
	metrics.EscalationsEnqueued.WithLabelValues(p.String()).Inc()
	metrics.EscalationQueueDepth.WithLabelValues(p.String()).Set(float64(len(q.bands[p])))
	q.signal()
	return true
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryDequeue returns the next item without waiting.
func (q *Queue) TryDequeue() (*models.EscalationItem, bool) {
	for i := range q.bands {
		select {
		case item := <-q.bands[i]:
			p := models.Priority(i)
			metrics.EscalationQueueDepth.WithLabelValues(p.String()).Set(float64(len(q.bands[i])))
			if q.Len() > 0 {
				// pass the wake-up on to another waiting consumer
				q.signal()
			}
			return item, true
		default:
		}
	}
	return nil, false
}

// Dequeue waits for the next item, the context to end or the queue to close.
func (q *Queue) Dequeue(ctx context.Context) (*models.EscalationItem, error) {
	for {
		if item, ok := q.TryDequeue(); ok {
			return item, nil
		}
		select {
		case <-q.notify:
		case <-q.closed:
			if item, ok := q.TryDequeue(); ok {
				return item, nil
			}
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len is the total number of waiting items.
func (q *Queue) Len() int {
	n := 0
	for i := range q.bands {
		n += len(q.bands[i])
	}
	return n
}

// BandLen is the number of waiting items of one priority.
func (q *Queue) BandLen(p models.Priority) int {
	if p < models.PriorityCritical || p > models.PriorityLow {
		return 0
	}
	return len(q.bands[p])
}

// Close wakes blocked consumers. Items already queued can still be drained.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}
