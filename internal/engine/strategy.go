package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"curator/internal/classifier"
	"curator/internal/filter"
	"curator/internal/models"
	"curator/internal/policy"
	"curator/internal/textsignals"
	"curator/pkg/reasoner"
)

// Strategy names.
const (
	StrategyFastOnly      = "fast_only"
	StrategyFullReasoning = "full_reasoning"
	StrategyHybrid        = "hybrid"
	DefaultStrategy       = StrategyHybrid
)

// legacy names still accepted on input
var strategyAliases = map[string]string{
	"llm_only":    StrategyFullReasoning,
	"multi_layer": StrategyHybrid,
}

// ResolveStrategyName maps a name or alias to a canonical strategy name.
func ResolveStrategyName(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := strategyAliases[n]; ok {
		n = alias
	}
	switch n {
	case StrategyFastOnly, StrategyFullReasoning, StrategyHybrid:
		return n, true
	}
	return "", false
}

// StrategyNames lists the canonical strategy names, sorted.
func StrategyNames() []string {
	names := []string{StrategyFastOnly, StrategyFullReasoning, StrategyHybrid}
	sort.Strings(names)
	return names
}

// Strategy is one of the closed set of pipeline shapes. Only this package can
// build one.
type Strategy struct {
	name        string
	description string
	layers      []string
	thresholds  policy.Thresholds
	runLayers   func(ctx context.Context, e *Engine, r *run) error
}

// StrategyInfo describes a strategy for clients.
type StrategyInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Layers      []string          `json:"layers"`
	Thresholds  policy.Thresholds `json:"thresholds"`
	Active      bool              `json:"active"`
}

func (s *Strategy) Name() string                  { return s.name }
func (s *Strategy) Thresholds() policy.Thresholds { return s.thresholds }

func (s *Strategy) info(active bool) StrategyInfo {
	return StrategyInfo{
		Name:        s.name,
		Description: s.description,
		Layers:      append([]string(nil), s.layers...),
		Thresholds:  s.thresholds,
		Active:      active,
	}
}

func newStrategy(name string, t policy.Thresholds) (*Strategy, error) {
	switch name {
	case StrategyFastOnly:
		return &Strategy{
			name:        name,
			description: "Fast filters and local classifiers only; low-confidence decisions are capped at caution and escalated.",
			layers:      []string{filter.LayerName, classifier.LayerName},
			thresholds:  t,
			runLayers:   runFastOnly,
		}, nil
	case StrategyFullReasoning:
		return &Strategy{
			name:        name,
			description: "Fast filters, then the reasoning service for every item.",
			layers:      []string{filter.LayerName, reasoner.LayerName},
			thresholds:  t,
			runLayers:   runFullReasoning,
		}, nil
	case StrategyHybrid:
		return &Strategy{
			name:        name,
			description: "Fast filters and classifiers; reasoning only when confidence is low or the content is complex.",
			layers:      []string{filter.LayerName, classifier.LayerName, reasoner.LayerName},
			thresholds:  t,
			runLayers:   runHybrid,
		}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

func runFastOnly(ctx context.Context, e *Engine, r *run) error {
	if err := e.runFastFilter(ctx, r); err != nil || r.final {
		return err
	}
	return e.runClassifiers(ctx, r)
}

func runFullReasoning(ctx context.Context, e *Engine, r *run) error {
	if err := e.runFastFilter(ctx, r); err != nil || r.final {
		return err
	}
	r.reasoningRequired = true
	r.reasoningReason = "strategy always reasons"
	return e.runReasoning(ctx, r)
}

func runHybrid(ctx context.Context, e *Engine, r *run) error {
	if err := e.runFastFilter(ctx, r); err != nil || r.final {
		return err
	}
	if err := e.runClassifiers(ctx, r); err != nil || r.final {
		return err
	}

	triggers := textsignals.ReasoningTriggers(r.item.Text, r.uc)
	switch {
	case r.classification.Empty():
		r.reasoningReason = "no classifier result"
	case len(triggers) > 0:
		r.reasoningReason = "complexity: " + strings.Join(triggers, ", ")
	case !policy.Sufficient(r.confidence, r.thresholds):
		r.reasoningReason = fmt.Sprintf("classifier confidence %.2f below %.2f", r.confidence, r.thresholds.SufficientConfidence)
	default:
		return nil
	}
	r.reasoningRequired = true
	return e.runReasoning(ctx, r)
}

// classifierShortCircuit reports whether the aggregate safety score is below
// the base block threshold, which ends the pipeline without reasoning.
func classifierShortCircuit(c models.ClassificationResult, t policy.Thresholds) bool {
	return c.Safety != nil && c.Safety.Score < t.BlockThreshold
}
