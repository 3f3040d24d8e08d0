// Package costtracker accumulates the spend of reasoning calls.
package costtracker

import (
	"context"
	"sort"
	"sync"
)

// CostEvent represents a single model call and its cost.
type CostEvent struct {
	Operation string // e.g. "reasoning"
	Provider  string
	AmountUSD float64
	Details   map[string]interface{}
}

// Summary is the spend grouped by provider.
type Summary struct {
	TotalUSD   float64            `json:"totalUsd"`
	Calls      int                `json:"calls"`
	ByProvider map[string]float64 `json:"byProvider"`
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
	Summary(ctx context.Context) (Summary, error)
}

// New returns an in-memory tracker.
func New() CostTracker {
	return &memoryTracker{byProvider: make(map[string]float64)}
}

type memoryTracker struct {
	mu         sync.Mutex
	total      float64
	calls      int
	byProvider map[string]float64
}

func (m *memoryTracker) RecordCost(_ context.Context, event CostEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += event.AmountUSD
	m.calls++
	provider := event.Provider
	if provider == "" {
		provider = "unknown"
	}
	m.byProvider[provider] += event.AmountUSD
	return nil
}

func (m *memoryTracker) TotalCost(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *memoryTracker) Summary(_ context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{TotalUSD: m.total, Calls: m.calls, ByProvider: make(map[string]float64, len(m.byProvider))}
	for k, v := range m.byProvider {
		s.ByProvider[k] = v
	}
	return s, nil
}

// Providers lists providers with recorded spend, sorted.
func (s Summary) Providers() []string {
	out := make([]string, 0, len(s.ByProvider))
	for p := range s.ByProvider {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
