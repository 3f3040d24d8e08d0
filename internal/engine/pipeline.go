package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"curator/internal/classifier"
	"curator/internal/escalation"
	"curator/internal/filter"
	"curator/internal/metrics"
	"curator/internal/models"
	"curator/internal/policy"
	"curator/pkg/reasoner"
)

// run is the state of one pass through the layers of a strategy.
type run struct {
	item       models.ContentItem
	uc         models.UserContext
	key        string
	strategy   string
	thresholds policy.Thresholds

	classification models.ClassificationResult
	confidence     float64
	layers         []string
	errs           []models.LayerError

	// final is set when a layer settled the decision on its own.
	final    bool
	decision policy.Decision

	reasoningRequired bool
	reasoningReason   string
	reasoningOK       bool
	reasoningTimedOut bool
}

func (e *Engine) execute(ctx context.Context, s *Strategy, item models.ContentItem, uc models.UserContext, key string) (models.CurationResult, error) {
	r := &run{
		item:       item,
		uc:         uc,
		key:        key,
		strategy:   s.name,
		thresholds: s.thresholds,
	}
	if err := s.runLayers(ctx, e, r); err != nil {
		return models.CurationResult{}, err
	}
	res, err := e.finish(r)
	if err != nil {
		return models.CurationResult{}, err
	}
	// the caller may already be gone; the decision is still worth keeping
	e.store(context.WithoutCancel(ctx), key, res)
	return res, nil
}

func (e *Engine) runFastFilter(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return &models.CancelledError{Err: err}
	}
	fctx, cancel := context.WithTimeout(ctx, e.timeouts.Fast)
	defer cancel()

	r.layers = append(r.layers, filter.LayerName)
	start := time.Now()
	v, err := e.filter.Evaluate(fctx, r.item)
	metrics.LayerDuration.WithLabelValues(filter.LayerName).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return &models.CancelledError{Err: ctx.Err()}
		}
		r.addError(layerError(filter.LayerName, err, e.timeouts.Fast))
		return nil
	}
	if v.Blocked {
		metrics.FastFilterBlocks.WithLabelValues(v.Category).Inc()
		r.final = true
		r.decision = policy.Decision{
			Action:     models.ActionBlock,
			Reason:     fmt.Sprintf("fast filter: %s (%s)", v.Reason, v.Rule),
			Confidence: 1,
			Rule:       v.Rule,
		}
	}
	return nil
}

func (e *Engine) runClassifiers(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return &models.CancelledError{Err: err}
	}
	if e.classifiers == nil {
		r.addError(models.LayerError{Layer: classifier.LayerName, Kind: "failure", Message: "no classifier layer configured"})
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, e.timeouts.Classifiers)
	defer cancel()

	r.layers = append(r.layers, classifier.LayerName)
	start := time.Now()
	res, err := e.classifiers.Run(cctx, r.item.Text)
	metrics.LayerDuration.WithLabelValues(classifier.LayerName).Observe(time.Since(start).Seconds())
	for _, le := range res.Errors {
		metrics.LayerErrorsTotal.WithLabelValues(le.Layer, le.Kind).Inc()
		r.errs = append(r.errs, le)
	}
	if err != nil {
		if ctx.Err() != nil {
			return &models.CancelledError{Err: ctx.Err()}
		}
		r.addError(layerError(classifier.LayerName, err, e.timeouts.Classifiers))
		return nil
	}

	r.classification = res.Classification
	r.confidence = res.Confidence
	if classifierShortCircuit(r.classification, r.thresholds) {
		r.final = true
		r.decision = policy.Decision{
			Action:     models.ActionBlock,
			Reason:     fmt.Sprintf("classifier safety score %.2f below block threshold %.2f", r.classification.Safety.Score, r.thresholds.BlockThreshold),
			Confidence: r.classification.Safety.Confidence,
			Rule:       policy.RuleSafetyFloor,
		}
	}
	return nil
}

func (e *Engine) runReasoning(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return &models.CancelledError{Err: err}
	}
	r.layers = append(r.layers, reasoner.LayerName)
	if e.reasoner == nil {
		r.addError(models.LayerError{Layer: reasoner.LayerName, Kind: "failure", Message: "no reasoner configured"})
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, e.timeouts.Reasoning)
	defer cancel()

	provider := e.reasoner.Name()
	logger := log.WithFields(log.Fields{"provider": provider, "strategy": r.strategy, "why": r.reasoningReason})
	logger.Debug("invoking reasoning layer")

	start := time.Now()
	c, err := e.reasoner.Analyze(rctx, reasoner.NewRequest(r.item.Text, r.uc))
	metrics.LayerDuration.WithLabelValues(reasoner.LayerName).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			metrics.ReasoningCalls.WithLabelValues(provider, "cancelled").Inc()
			return &models.CancelledError{Err: ctx.Err()}
		}
		le := layerError(reasoner.LayerName, err, e.timeouts.Reasoning)
		r.reasoningTimedOut = le.Kind == "timeout"
		outcome := le.Kind
		if errors.Is(err, models.ErrContractViolation) {
			outcome = "contract_violation"
		}
		metrics.ReasoningCalls.WithLabelValues(provider, outcome).Inc()
		logger.WithError(err).Warn("reasoning layer failed")
		r.addError(le)
		return nil
	}
	metrics.ReasoningCalls.WithLabelValues(provider, "ok").Inc()

	r.reasoningOK = true
	r.classification = models.Overlay(r.classification, c)
	r.confidence = r.classification.MinConfidence()
	return nil
}

// finish turns the layer outputs into a result, escalating where the
// pipeline could not reach a confident answer.
func (e *Engine) finish(r *run) (models.CurationResult, error) {
	res := models.CurationResult{
		StrategyUsed:   r.strategy,
		LayersInvoked:  r.layers,
		Classification: r.classification,
		LayerErrors:    r.errs,
	}
	if r.final {
		res.Action, res.Reason, res.Confidence = r.decision.Action, r.decision.Reason, r.decision.Confidence
		return res, nil
	}

	if r.classification.Empty() && !(r.reasoningRequired && r.reasoningTimedOut) {
		e.escalate(r, reasonNoClassification, models.ActionCaution)
		return models.CurationResult{}, &models.PipelineExhaustedError{LayerErrors: r.errs}
	}

	d := policy.Decide(r.classification, r.uc, r.thresholds)
	res.Action, res.Reason, res.Confidence = d.Action, d.Reason, d.Confidence

	switch {
	case r.reasoningRequired && !r.reasoningOK:
		// the deeper look never happened; keep a block, never allow
		if d.Action != models.ActionBlock {
			res.Action = models.ActionCaution
			res.Reason = reasonAnalysisIncomplete
			res.Confidence = math.Min(d.Confidence, r.confidence)
		} else {
			res.Reason = d.Reason + "; " + reasonAnalysisIncomplete
		}
		res.Escalated = e.escalate(r, reasonAnalysisIncomplete, res.Action)
	case !policy.Sufficient(res.Confidence, r.thresholds):
		if res.Action == models.ActionAllow {
			res.Action = models.ActionCaution
			res.Reason = fmt.Sprintf("%s (%.2f < %.2f): %s", reasonLowConfidence, res.Confidence, r.thresholds.SufficientConfidence, d.Reason)
		}
		res.Escalated = e.escalate(r, reasonLowConfidence, res.Action)
	}
	return res, nil
}

func (e *Engine) escalate(r *run, reason string, provisional models.Action) bool {
	if !e.markPending(r.key) {
		log.WithField("key", r.key).Debug("escalation already pending review")
		return true
	}
	item := &models.EscalationItem{
		CacheKey:              r.key,
		Content:               r.item,
		UserContext:           r.uc,
		PartialClassification: r.classification.Clone(),
		Priority:              escalation.DerivePriority(r.uc, r.classification),
		Reason:                reason,
		Strategy:              r.strategy,
		ProvisionalAction:     provisional,
	}
	if !e.escalations.Enqueue(item) {
		e.clearPending(r.key)
		return false
	}
	log.WithFields(log.Fields{
		"escalation_id": item.ID,
		"priority":      item.Priority.String(),
		"reason":        reason,
	}).Info("content escalated for review")
	return true
}

func (r *run) addError(le models.LayerError) {
	metrics.LayerErrorsTotal.WithLabelValues(le.Layer, le.Kind).Inc()
	r.errs = append(r.errs, le)
}

// layerError converts a layer's error into its recorded form. Deadline
// errors become LayerTimeoutErrors carrying the layer's budget.
func layerError(layer string, err error, budget time.Duration) models.LayerError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrLayerTimeout) {
		te := &models.LayerTimeoutError{Layer: layer, Timeout: budget}
		return models.LayerError{Layer: layer, Kind: "timeout", Message: te.Error()}
	}
	var fe *models.LayerFailureError
	if !errors.As(err, &fe) {
		fe = &models.LayerFailureError{Layer: layer, Err: err}
	}
	return models.LayerError{Layer: layer, Kind: "failure", Message: fe.Error()}
}
