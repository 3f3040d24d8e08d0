package costtracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	ct := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ct.RecordCost(ctx, CostEvent{Operation: "reasoning", Provider: "openai", AmountUSD: 0.01})
		}()
	}
	wg.Wait()
	require.NoError(t, ct.RecordCost(ctx, CostEvent{Operation: "reasoning", AmountUSD: 0.5}))

	total, err := ct.TotalCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, total, 1e-9)

	s, err := ct.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, s.Calls)
	assert.Equal(t, []string{"openai", "unknown"}, s.Providers())
	assert.InDelta(t, 0.1, s.ByProvider["openai"], 1e-9)
}
