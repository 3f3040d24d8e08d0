// Package engine runs the curation pipeline: cache, fast filter,
// classifiers, reasoning, policy and escalation, behind one Curate call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"curator/internal/cache"
	"curator/internal/classifier"
	"curator/internal/filter"
	"curator/internal/metrics"
	"curator/internal/models"
	"curator/internal/policy"
	"curator/internal/store"
	"curator/pkg/reasoner"
)

const (
	DefaultFastTimeout       = 100 * time.Millisecond
	DefaultClassifierTimeout = 1000 * time.Millisecond
	DefaultReasoningTimeout  = 15000 * time.Millisecond
	DefaultCacheTTL          = time.Hour
	auditTimeout             = 2 * time.Second
	maxJoinAttempts          = 3
	maxPendingKeys           = 4096
	layerModeratorReview     = "moderator_review"
	reasonAnalysisIncomplete = "analysis incomplete"
	reasonLowConfidence      = "confidence below the strategy floor"
	reasonNoClassification   = "no layer produced a classification"
)

// FastFilter is the deterministic first layer.
type FastFilter interface {
	Evaluate(ctx context.Context, item models.ContentItem) (filter.Verdict, error)
}

// ClassifierLayer fans out to the specialized classifiers.
type ClassifierLayer interface {
	Run(ctx context.Context, text string) (classifier.Result, error)
}

// Escalator accepts items for human review without blocking.
type Escalator interface {
	Enqueue(item *models.EscalationItem) bool
}

// Timeouts bound each layer.
type Timeouts struct {
	Fast        time.Duration
	Classifiers time.Duration
	Reasoning   time.Duration
}

// Options configures an Engine. Filter and Escalations are required; a nil
// Reasoner makes every reasoning attempt a layer failure.
type Options struct {
	Filter      FastFilter
	Classifiers ClassifierLayer
	Reasoner    reasoner.Reasoner
	Cache       cache.Cache
	CacheTTL    time.Duration
	Escalations Escalator
	Reviews     store.EscalationStore
	Decisions   store.DecisionStore
	Timeouts    Timeouts
	// Thresholds overrides the policy thresholds of individual strategies.
	Thresholds map[string]policy.Thresholds
	Strategy   string
}

// Engine is safe for concurrent use.
type Engine struct {
	filter      FastFilter
	classifiers ClassifierLayer
	reasoner    reasoner.Reasoner
	cache       cache.Cache
	cacheTTL    time.Duration
	escalations Escalator
	reviews     store.EscalationStore
	decisions   store.DecisionStore
	timeouts    Timeouts

	strategies map[string]*Strategy
	active     atomic.Pointer[Strategy]
	inflight   singleflight.Group
	now        func() time.Time

	// pending holds the cache keys with an escalation awaiting review, so
	// repeat calls do not queue the same decision twice.
	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Filter == nil {
		return nil, errors.New("engine: fast filter is required")
	}
	if opts.Escalations == nil {
		return nil, errors.New("engine: escalation queue is required")
	}
	e := &Engine{
		filter:      opts.Filter,
		classifiers: opts.Classifiers,
		reasoner:    opts.Reasoner,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		escalations: opts.Escalations,
		reviews:     opts.Reviews,
		decisions:   opts.Decisions,
		timeouts:    withDefaults(opts.Timeouts),
		strategies:  make(map[string]*Strategy),
		pending:     make(map[string]time.Time),
		now:         time.Now,
	}
	if e.cacheTTL <= 0 {
		e.cacheTTL = DefaultCacheTTL
	}

	for _, name := range StrategyNames() {
		t := policy.DefaultThresholds()
		if override, ok := opts.Thresholds[name]; ok {
			t = override
		}
		s, err := newStrategy(name, t)
		if err != nil {
			return nil, err
		}
		e.strategies[name] = s
	}

	initial := opts.Strategy
	if initial == "" {
		initial = DefaultStrategy
	}
	if _, err := e.SetStrategy(initial); err != nil {
		return nil, err
	}
	return e, nil
}

func withDefaults(t Timeouts) Timeouts {
	if t.Fast <= 0 {
		t.Fast = DefaultFastTimeout
	}
	if t.Classifiers <= 0 {
		t.Classifiers = DefaultClassifierTimeout
	}
	if t.Reasoning <= 0 {
		t.Reasoning = DefaultReasoningTimeout
	}
	return t
}

// SetStrategy switches the active strategy. Calls already running keep the
// strategy they started with.
func (e *Engine) SetStrategy(name string) (StrategyInfo, error) {
	canonical, ok := ResolveStrategyName(name)
	if !ok {
		return StrategyInfo{}, &models.InvalidInputError{Field: "strategy", Reason: "unknown value " + name}
	}
	s := e.strategies[canonical]
	if prev := e.active.Swap(s); prev != nil && prev != s {
		log.WithFields(log.Fields{"from": prev.name, "to": s.name}).Info("curation strategy switched")
	}
	return s.info(true), nil
}

// Strategy returns the active strategy.
func (e *Engine) Strategy() StrategyInfo {
	return e.active.Load().info(true)
}

// Strategies describes every strategy, sorted by name.
func (e *Engine) Strategies() []StrategyInfo {
	active := e.active.Load()
	out := make([]StrategyInfo, 0, len(e.strategies))
	for _, name := range StrategyNames() {
		s := e.strategies[name]
		out = append(out, s.info(s == active))
	}
	return out
}

// Curate decides what to do with item for the user described by uc.
func (e *Engine) Curate(ctx context.Context, item models.ContentItem, uc models.UserContext) (models.CurationResult, error) {
	start := e.now()
	if err := item.Validate(); err != nil {
		return models.CurationResult{}, err
	}
	uc = uc.Normalize()
	if err := uc.Validate(); err != nil {
		return models.CurationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.CurationResult{}, &models.CancelledError{Err: err}
	}

	strat := e.active.Load()
	fingerprint := cache.Fingerprint(item, uc)
	key := cache.Key(strat.name, fingerprint)

	res, hit := e.lookup(ctx, key)
	if !hit {
		var err error
		res, err = e.join(ctx, key, func() (models.CurationResult, error) {
			return e.execute(ctx, strat, item, uc, key)
		})
		if err != nil {
			return models.CurationResult{}, err
		}
	}

	elapsed := e.now().Sub(start)
	res.ProcessingTimeMs = elapsed.Milliseconds()
	metrics.CurationsTotal.WithLabelValues(strat.name, string(res.Action)).Inc()
	metrics.CurationDuration.WithLabelValues(strat.name).Observe(elapsed.Seconds())
	e.audit(ctx, fingerprint, item, res)
	return res, nil
}

// join runs fn once per key across concurrent callers. Every caller waits
// under its own context; if the shared run was cancelled by the caller that
// started it, the others start a new one.
func (e *Engine) join(ctx context.Context, key string, fn func() (models.CurationResult, error)) (models.CurationResult, error) {
	for attempt := 1; ; attempt++ {
		ch := e.inflight.DoChan(key, func() (interface{}, error) {
			// a run that finished between our lookup and this call may have stored it
			if res, ok := e.lookup(ctx, key); ok {
				return res, nil
			}
			return fn()
		})
		select {
		case <-ctx.Done():
			return models.CurationResult{}, &models.CancelledError{Err: ctx.Err()}
		case r := <-ch:
			if r.Err != nil {
				if errors.Is(r.Err, models.ErrCancelled) && ctx.Err() == nil && attempt < maxJoinAttempts {
					log.WithField("attempt", attempt).Debug("shared curation was cancelled, retrying")
					continue
				}
				return models.CurationResult{}, r.Err
			}
			return r.Val.(models.CurationResult).Clone(), nil
		}
	}
}

func (e *Engine) lookup(ctx context.Context, key string) (models.CurationResult, bool) {
	if e.cache == nil {
		return models.CurationResult{}, false
	}
	res, ok := e.cache.Get(ctx, key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return res, ok
}

func (e *Engine) store(ctx context.Context, key string, res models.CurationResult) {
	if e.cache == nil || res.Degraded() {
		return
	}
	if err := e.cache.Put(ctx, key, res, e.cacheTTL); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to cache curation result")
	}
}

func (e *Engine) audit(ctx context.Context, fingerprint string, item models.ContentItem, res models.CurationResult) {
	if e.decisions == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	rec := &models.DecisionRecord{
		Fingerprint:      fingerprint,
		ContentID:        item.ID,
		Action:           res.Action,
		Reason:           res.Reason,
		Confidence:       res.Confidence,
		Strategy:         res.StrategyUsed,
		Layers:           res.LayersInvoked,
		Escalated:        res.Escalated,
		ProcessingTimeMs: res.ProcessingTimeMs,
		CreatedAt:        e.now().UTC(),
	}
	if err := e.decisions.RecordDecision(actx, rec); err != nil {
		log.WithError(err).WithField("fingerprint", fingerprint).Warn("failed to record decision")
	}
}

// ReviewEscalation applies a moderator verdict to a pending escalation.
// Later calls for the same content and context are answered with the
// verdict until it expires from the cache.
func (e *Engine) ReviewEscalation(ctx context.Context, id string, review models.EscalationReview) (*models.EscalationItem, error) {
	if e.reviews == nil {
		return nil, errors.New("engine: no escalation store configured")
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}
	item, err := e.reviews.ReviewEscalation(ctx, id, review)
	if err != nil {
		return nil, fmt.Errorf("review escalation %s: %w", id, err)
	}
	if item.CacheKey != "" {
		e.clearPending(item.CacheKey)
		if e.cache != nil {
			if err := e.cache.Put(ctx, item.CacheKey, reviewedResult(item), e.cacheTTL); err != nil {
				log.WithError(err).WithField("escalation_id", id).Warn("failed to cache reviewed decision")
			}
		}
	}
	log.WithFields(log.Fields{
		"escalation_id": id,
		"action":        item.Review.Action,
		"reviewer":      item.Review.Reviewer,
	}).Info("escalation reviewed")
	return item, nil
}

// reviewedResult is the decision served for a reviewed escalation.
func reviewedResult(item *models.EscalationItem) models.CurationResult {
	reason := "moderator review"
	if item.Review.Note != "" {
		reason += ": " + item.Review.Note
	}
	return models.CurationResult{
		Action:         item.Review.Action,
		Reason:         reason,
		Confidence:     1,
		StrategyUsed:   item.Strategy,
		LayersInvoked:  []string{layerModeratorReview},
		Classification: item.PartialClassification.Clone(),
	}
}

// markPending records key as awaiting review. It reports false when an
// unexpired escalation for key is already pending.
func (e *Engine) markPending(key string) bool {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	now := e.now()
	if at, ok := e.pending[key]; ok && now.Sub(at) < e.cacheTTL {
		return false
	}
	if len(e.pending) >= maxPendingKeys {
		for k, at := range e.pending {
			if now.Sub(at) >= e.cacheTTL {
				delete(e.pending, k)
			}
		}
	}
	e.pending[key] = now
	return true
}

func (e *Engine) clearPending(key string) {
	e.pendingMu.Lock()
	delete(e.pending, key)
	e.pendingMu.Unlock()
}
