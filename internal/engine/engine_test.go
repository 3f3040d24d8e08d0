package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/cache"
	"curator/internal/classifier"
	"curator/internal/escalation"
	"curator/internal/filter"
	"curator/internal/models"
	"curator/internal/store/memory"
	"curator/pkg/reasoner"
)

type stubLayer struct {
	res   classifier.Result
	err   error
	calls atomic.Int32
}

func (s *stubLayer) Run(ctx context.Context, text string) (classifier.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return classifier.Result{Errors: []models.LayerError{{Layer: "classifier:stub", Kind: "failure", Message: s.err.Error()}}}, s.err
	}
	res := s.res
	res.Classification = s.res.Classification.Clone()
	return res, nil
}

type stubReasoner struct {
	result  models.ClassificationResult
	err     error
	delay   time.Duration
	calls   atomic.Int32
	started chan struct{}
}

func (s *stubReasoner) Name() string { return "stub" }

func (s *stubReasoner) Analyze(ctx context.Context, req reasoner.Request) (models.ClassificationResult, error) {
	s.calls.Add(1)
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.ClassificationResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.ClassificationResult{}, s.err
	}
	return s.result.Clone(), nil
}

func assessment(safety, conf float64) models.ClassificationResult {
	return models.ClassificationResult{
		Safety:      &models.SafetyDimension{Score: safety, Confidence: conf, Source: "stub"},
		Educational: &models.EducationalDimension{Score: 0.6, CognitiveLevel: models.CognitiveUnderstand, Confidence: conf, Source: "stub"},
		Viewpoint:   &models.ViewpointDimension{PoliticalLeaning: models.LeaningNeutral, Credibility: 0.8, Confidence: conf, Source: "stub"},
		Scam:        &models.ScamDimension{ScamConfidence: 0.05, Confidence: conf, Source: "stub"},
	}
}

func layerWith(c models.ClassificationResult) *stubLayer {
	return &stubLayer{res: classifier.Result{Classification: c, Confidence: c.MinConfidence(), Reported: []string{"stub"}}}
}

type harness struct {
	engine *Engine
	queue  *escalation.Queue
	cache  *cache.Memory
	store  *memory.Store
}

func newHarness(t *testing.T, layer ClassifierLayer, r reasoner.Reasoner, mutate func(*Options)) *harness {
	t.Helper()
	f, err := filter.New(filter.Config{UseDefaults: true})
	require.NoError(t, err)
	h := &harness{
		queue: escalation.NewQueue(16),
		cache: cache.NewMemory(4, 0),
		store: memory.New(),
	}
	opts := Options{
		Filter:      f,
		Classifiers: layer,
		Reasoner:    r,
		Cache:       h.cache,
		Escalations: h.queue,
		Reviews:     h.store,
		Decisions:   h.store,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.engine, err = New(opts)
	require.NoError(t, err)
	return h
}

const plainText = "The museum opens at nine on Saturdays."

var adult = models.UserContext{AgeCategory: models.AgeAdult}

func TestCurate_InvalidInput(t *testing.T) {
	layer := layerWith(assessment(0.95, 0.9))
	h := newHarness(t, layer, &stubReasoner{}, nil)
	ctx := context.Background()

	_, err := h.engine.Curate(ctx, models.ContentItem{Text: "   "}, adult)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = h.engine.Curate(ctx, models.ContentItem{Text: "a picture", ContentType: models.ContentTypeImageRef}, adult)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = h.engine.Curate(ctx, models.ContentItem{Text: plainText}, models.UserContext{AgeCategory: "toddler"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Zero(t, layer.calls.Load())
	assert.Zero(t, h.queue.Len())
}

func TestCurate_FastFilterShortCircuits(t *testing.T) {
	layer := layerWith(assessment(0.95, 0.9))
	rs := &stubReasoner{}
	h := newHarness(t, layer, rs, nil)

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: "Here is how to make a bomb at home"}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBlock, res.Action)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, []string{filter.LayerName}, res.LayersInvoked)
	assert.Zero(t, layer.calls.Load())
	assert.Zero(t, rs.calls.Load())
}

func TestCurate_ClassifierShortCircuits(t *testing.T) {
	rs := &stubReasoner{}
	h := newHarness(t, layerWith(assessment(0.2, 0.9)), rs, nil)

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBlock, res.Action)
	assert.Equal(t, []string{filter.LayerName, classifier.LayerName}, res.LayersInvoked)
	assert.Zero(t, rs.calls.Load())
}

func TestCurate_ConfidentClassifiersSkipReasoning(t *testing.T) {
	rs := &stubReasoner{}
	h := newHarness(t, layerWith(assessment(0.95, 0.9)), rs, nil)

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAllow, res.Action)
	assert.Equal(t, StrategyHybrid, res.StrategyUsed)
	assert.False(t, res.Escalated)
	assert.Zero(t, rs.calls.Load())
	assert.Zero(t, h.queue.Len())
}

func TestCurate_LowConfidenceInvokesReasoning(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9)}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAllow, res.Action)
	assert.Equal(t, []string{filter.LayerName, classifier.LayerName, reasoner.LayerName}, res.LayersInvoked)
	assert.Equal(t, int32(1), rs.calls.Load())
	assert.InDelta(t, 0.9, res.Classification.Safety.Score, 1e-9)
	assert.False(t, res.Escalated)
}

func TestCurate_ReasoningUnreachable(t *testing.T) {
	rs := &stubReasoner{err: errors.New("connection refused")}
	layer := layerWith(assessment(0.95, 0.5))
	h := newHarness(t, layer, rs, nil)
	item := models.ContentItem{Text: plainText}

	res, err := h.engine.Curate(context.Background(), item, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCaution, res.Action)
	assert.Equal(t, "analysis incomplete", res.Reason)
	assert.True(t, res.Escalated)
	require.Len(t, res.LayerErrors, 1)
	assert.Equal(t, reasoner.LayerName, res.LayerErrors[0].Layer)
	assert.Equal(t, "failure", res.LayerErrors[0].Kind)
	assert.Equal(t, 1, h.queue.Len())

	// degraded decisions are not cached, but the pending escalation is not repeated
	again, err := h.engine.Curate(context.Background(), item, adult)
	require.NoError(t, err)
	assert.True(t, again.Escalated)
	assert.Equal(t, int32(2), rs.calls.Load())
	assert.Equal(t, 1, h.queue.Len())
}

func TestCurate_PendingEscalationIsNotRepeated(t *testing.T) {
	rs := &stubReasoner{err: errors.New("connection refused")}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)
	ctx := context.Background()
	item := models.ContentItem{Text: plainText}

	for i := 0; i < 5; i++ {
		res, err := h.engine.Curate(ctx, item, adult)
		require.NoError(t, err)
		assert.True(t, res.Escalated)
	}
	require.Equal(t, 1, h.queue.Len())

	// another user context is another decision
	_, err := h.engine.Curate(ctx, item, models.UserContext{AgeCategory: models.AgeUnder18})
	require.NoError(t, err)
	assert.Equal(t, 2, h.queue.Len())

	// once reviewed, a later failure for the same key may escalate again
	esc, ok := h.queue.TryDequeue()
	require.True(t, ok)
	require.NoError(t, h.store.SaveEscalation(ctx, esc))
	_, err = h.engine.ReviewEscalation(ctx, esc.ID, models.EscalationReview{Action: models.ActionAllow, Reviewer: "mod"})
	require.NoError(t, err)
	require.NoError(t, h.cache.Invalidate(ctx, esc.CacheKey))

	_, err = h.engine.Curate(ctx, esc.Content, esc.UserContext)
	require.NoError(t, err)
	assert.Equal(t, 2, h.queue.Len())
}

func TestCurate_ReasoningTimeout(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9), delay: time.Second}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, func(o *Options) {
		o.Timeouts.Reasoning = 20 * time.Millisecond
	})

	start := time.Now()
	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, models.ActionCaution, res.Action)
	assert.True(t, res.Escalated)
	require.Len(t, res.LayerErrors, 1)
	assert.Equal(t, "timeout", res.LayerErrors[0].Kind)
	assert.Contains(t, res.LayerErrors[0].Message, "20ms")
}

func TestCurate_ReasoningFailureKeepsBlock(t *testing.T) {
	c := assessment(0.55, 0.9)
	c.Scam = &models.ScamDimension{IsScam: true, ScamConfidence: 0.9, ScamType: models.ScamInvestment, Indicators: []string{"urgency language"}, Confidence: 0.9}
	rs := &stubReasoner{err: errors.New("service unavailable")}
	h := newHarness(t, layerWith(c), rs, nil)
	elder := models.UserContext{AgeCategory: models.AgeAdult, VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorElderly}}

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: "Guaranteed 500% returns, act now, don't tell your family"}, elder)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBlock, res.Action)
	assert.Contains(t, res.Reason, "analysis incomplete")
	assert.True(t, res.Escalated)
	assert.Equal(t, int32(1), rs.calls.Load())

	item, ok := h.queue.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, models.PriorityCritical, item.Priority)
	assert.Equal(t, models.ActionBlock, item.ProvisionalAction)
	assert.NotEmpty(t, item.CacheKey)
}

func TestCurate_PipelineExhausted(t *testing.T) {
	layer := &stubLayer{err: &models.LayerFailureError{Layer: classifier.LayerName, Err: errors.New("all 1 classifiers failed")}}
	rs := &stubReasoner{err: errors.New("connection refused")}
	h := newHarness(t, layer, rs, nil)

	_, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPipelineExhausted)
	var pe *models.PipelineExhaustedError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.LayerErrors)
	assert.Equal(t, 1, h.queue.Len(), "an unclassifiable item is still escalated")
}

func TestCurate_FastOnlyCapsLowConfidence(t *testing.T) {
	rs := &stubReasoner{}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, func(o *Options) { o.Strategy = StrategyFastOnly })

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCaution, res.Action)
	assert.True(t, res.Escalated)
	assert.Equal(t, StrategyFastOnly, res.StrategyUsed)
	assert.Zero(t, rs.calls.Load())
}

func TestCurate_FullReasoningSkipsClassifiers(t *testing.T) {
	layer := layerWith(assessment(0.95, 0.9))
	rs := &stubReasoner{result: assessment(0.9, 0.9)}
	h := newHarness(t, layer, rs, func(o *Options) { o.Strategy = "llm_only" })

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAllow, res.Action)
	assert.Equal(t, StrategyFullReasoning, res.StrategyUsed)
	assert.Equal(t, []string{filter.LayerName, reasoner.LayerName}, res.LayersInvoked)
	assert.Zero(t, layer.calls.Load())
	assert.Equal(t, int32(1), rs.calls.Load())
}

func TestCurate_FullReasoningTimeoutWithoutClassification(t *testing.T) {
	rs := &stubReasoner{delay: time.Second}
	h := newHarness(t, layerWith(assessment(0.95, 0.9)), rs, func(o *Options) {
		o.Strategy = StrategyFullReasoning
		o.Timeouts.Reasoning = 10 * time.Millisecond
	})

	res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCaution, res.Action)
	assert.Equal(t, "analysis incomplete", res.Reason)
	assert.True(t, res.Escalated)
}

func TestCurate_CacheIsTransparent(t *testing.T) {
	layer := layerWith(assessment(0.95, 0.9))
	h := newHarness(t, layer, &stubReasoner{}, nil)
	ctx := context.Background()
	item := models.ContentItem{Text: plainText, SourceHint: "example.org"}

	first, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	second, err := h.engine.Curate(ctx, item, models.UserContext{AgeCategory: "ADULT "})
	require.NoError(t, err)
	assert.Equal(t, int32(1), layer.calls.Load(), "equivalent contexts share a cache entry")

	first.ProcessingTimeMs, second.ProcessingTimeMs = 0, 0
	assert.Equal(t, first, second)

	// results never share state
	first.Classification.Safety.Score = 0
	first.LayersInvoked[0] = "tampered"
	third, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, third.Classification.Safety.Score, 1e-9)
	assert.Equal(t, filter.LayerName, third.LayersInvoked[0])

	// a different context is a different decision
	_, err = h.engine.Curate(ctx, item, models.UserContext{AgeCategory: models.AgeUnder13})
	require.NoError(t, err)
	assert.Equal(t, int32(2), layer.calls.Load())
}

func TestCurate_SingleReasoningCallUnderConcurrency(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9), delay: 50 * time.Millisecond}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)
	item := models.ContentItem{Text: plainText}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]models.CurationResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.Curate(context.Background(), item, adult)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), rs.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.ActionAllow, results[i].Action)
	}
	results[0].Classification.Safety.Score = 0
	assert.InDelta(t, 0.9, results[1].Classification.Safety.Score, 1e-9)
}

func TestCurate_Cancellation(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9), delay: time.Second}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)
	item := models.ContentItem{Text: plainText}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.Curate(ctx, item, adult)
	assert.ErrorIs(t, err, models.ErrCancelled)

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = h.engine.Curate(ctx, item, adult)
	assert.ErrorIs(t, err, models.ErrCancelled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Zero(t, h.queue.Len(), "a cancelled call never escalates")
}

func TestCurate_WaiterSurvivesCancelledLeader(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9), delay: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)
	item := models.ContentItem{Text: plainText}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.engine.Curate(leaderCtx, item, adult)
		leaderErr <- err
	}()
	<-rs.started

	type outcome struct {
		res models.CurationResult
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		res, err := h.engine.Curate(context.Background(), item, adult)
		waiter <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderErr, models.ErrCancelled)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, models.ActionAllow, got.res.Action)
	assert.Equal(t, int32(2), rs.calls.Load())
}

func TestStrategySwitching(t *testing.T) {
	h := newHarness(t, layerWith(assessment(0.95, 0.9)), &stubReasoner{}, nil)

	assert.Equal(t, StrategyHybrid, h.engine.Strategy().Name)

	info, err := h.engine.SetStrategy("multi_layer")
	require.NoError(t, err)
	assert.Equal(t, StrategyHybrid, info.Name)

	info, err = h.engine.SetStrategy(" Fast_Only ")
	require.NoError(t, err)
	assert.Equal(t, StrategyFastOnly, info.Name)
	assert.True(t, info.Active)

	_, err = h.engine.SetStrategy("magic")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Equal(t, StrategyFastOnly, h.engine.Strategy().Name)

	var active []string
	for _, s := range h.engine.Strategies() {
		if s.Active {
			active = append(active, s.Name)
		}
	}
	assert.Equal(t, []string{StrategyFastOnly}, active)
	assert.Len(t, h.engine.Strategies(), 3)
}

func TestStrategySwitching_DuringCurations(t *testing.T) {
	h := newHarness(t, layerWith(assessment(0.95, 0.9)), &stubReasoner{result: assessment(0.95, 0.9)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		names := StrategyNames()
		for i := 0; ctx.Err() == nil; i++ {
			_, _ = h.engine.SetStrategy(names[i%len(names)])
		}
	}()
	for i := 0; i < 50; i++ {
		res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: plainText}, adult)
		require.NoError(t, err)
		_, ok := ResolveStrategyName(res.StrategyUsed)
		assert.True(t, ok)
	}
}

func TestStrategySwitching_KeysDecisionsPerStrategy(t *testing.T) {
	rs := &stubReasoner{result: assessment(0.9, 0.9)}
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), rs, nil)
	ctx := context.Background()
	item := models.ContentItem{Text: plainText}

	_, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	assert.Equal(t, int32(1), rs.calls.Load())

	_, err = h.engine.SetStrategy(StrategyFullReasoning)
	require.NoError(t, err)
	res, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	assert.Equal(t, StrategyFullReasoning, res.StrategyUsed)
	assert.Equal(t, int32(2), rs.calls.Load(), "a decision made under another strategy is not reused")

	_, err = h.engine.SetStrategy(StrategyHybrid)
	require.NoError(t, err)
	res, err = h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	assert.Equal(t, StrategyHybrid, res.StrategyUsed)
	assert.Equal(t, int32(2), rs.calls.Load())
	assert.Equal(t, 2, h.cache.Len())
}

func TestReviewEscalation(t *testing.T) {
	h := newHarness(t, layerWith(assessment(0.95, 0.5)), &stubReasoner{}, func(o *Options) { o.Strategy = StrategyFastOnly })
	ctx := context.Background()
	item := models.ContentItem{Text: plainText}

	res, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	require.True(t, res.Escalated)
	assert.Equal(t, 1, h.cache.Len())

	esc, ok := h.queue.TryDequeue()
	require.True(t, ok)
	require.NoError(t, h.store.SaveEscalation(ctx, esc))

	_, err = h.engine.ReviewEscalation(ctx, esc.ID, models.EscalationReview{Action: "maybe", Reviewer: "mod"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	reviewed, err := h.engine.ReviewEscalation(ctx, esc.ID, models.EscalationReview{Action: models.ActionAllow, Reviewer: "mod", Note: "harmless"})
	require.NoError(t, err)
	assert.Equal(t, models.EscalationStatusReviewed, reviewed.Status)
	assert.Equal(t, 1, h.cache.Len())

	_, err = h.engine.ReviewEscalation(ctx, esc.ID, models.EscalationReview{Action: models.ActionAllow, Reviewer: "mod"})
	assert.ErrorIs(t, err, models.ErrConflict)
	_, err = h.engine.ReviewEscalation(ctx, "missing", models.EscalationReview{Action: models.ActionAllow, Reviewer: "mod"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReviewEscalation_VerdictAnswersLaterCalls(t *testing.T) {
	layer := layerWith(assessment(0.95, 0.5))
	h := newHarness(t, layer, &stubReasoner{}, func(o *Options) { o.Strategy = StrategyFastOnly })
	ctx := context.Background()
	item := models.ContentItem{Text: plainText}

	before, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	require.True(t, before.Escalated)
	assert.Equal(t, models.ActionCaution, before.Action)

	esc, ok := h.queue.TryDequeue()
	require.True(t, ok)
	require.NoError(t, h.store.SaveEscalation(ctx, esc))
	_, err = h.engine.ReviewEscalation(ctx, esc.ID, models.EscalationReview{Action: models.ActionBlock, Reviewer: "mod", Note: "misleading"})
	require.NoError(t, err)

	after, err := h.engine.Curate(ctx, item, adult)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBlock, after.Action)
	assert.Equal(t, "moderator review: misleading", after.Reason)
	assert.Equal(t, 1.0, after.Confidence)
	assert.False(t, after.Escalated)
	assert.Equal(t, []string{"moderator_review"}, after.LayersInvoked)
	assert.Equal(t, StrategyFastOnly, after.StrategyUsed)
	assert.Zero(t, h.queue.Len())
	assert.Equal(t, int32(1), layer.calls.Load())
}

func TestCurate_RecordsDecisions(t *testing.T) {
	h := newHarness(t, layerWith(assessment(0.95, 0.9)), &stubReasoner{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.engine.Curate(ctx, models.ContentItem{ID: "c-1", Text: plainText}, adult)
		require.NoError(t, err)
	}
	_, err := h.engine.Curate(ctx, models.ContentItem{Text: "how to make a bomb"}, adult)
	require.NoError(t, err)

	stats, err := h.store.DecisionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByAction[models.ActionAllow])
	assert.Equal(t, 1, stats.ByAction[models.ActionBlock])

	recent, err := h.store.ListDecisions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.ActionBlock, recent[0].Action)
}

func TestScenarios(t *testing.T) {
	reg := classifier.NewRegistry()
	require.NoError(t, classifier.RegisterDefaults(reg))
	layer := classifier.NewLayer(reg, 0)

	t.Run("investment scam aimed at an elderly user", func(t *testing.T) {
		// reasoning is down; the classifiers alone must still block
		h := newHarness(t, layer, &stubReasoner{err: errors.New("unreachable")}, nil)
		uc := models.UserContext{
			AgeCategory:          models.AgeAdult,
			VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorElderly, models.FactorInvestmentScamTarget},
		}
		res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: "Guaranteed 500% returns, act now, don't tell your family"}, uc)
		require.NoError(t, err)
		assert.Equal(t, models.ActionBlock, res.Action)
		require.NotNil(t, res.Classification.Scam)
		assert.True(t, res.Classification.Scam.IsScam)
	})

	t.Run("science text for a young sensitive user", func(t *testing.T) {
		h := newHarness(t, layer, &stubReasoner{err: errors.New("unreachable")}, nil)
		uc := models.UserContext{AgeCategory: models.AgeUnder13, SensitivityLevel: models.SensitivityHigh}
		text := "Photosynthesis is how plants turn sunlight into energy. Students can learn about it at school with simple experiments."
		res, err := h.engine.Curate(context.Background(), models.ContentItem{Text: text}, uc)
		require.NoError(t, err)
		assert.NotEqual(t, models.ActionBlock, res.Action)
		require.NotNil(t, res.Classification.Educational)
		assert.Greater(t, res.Classification.Educational.Score, 0.5)
	})

	t.Run("empty content", func(t *testing.T) {
		h := newHarness(t, layer, nil, nil)
		_, err := h.engine.Curate(context.Background(), models.ContentItem{Text: ""}, adult)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestNew_Validation(t *testing.T) {
	f, err := filter.New(filter.Config{UseDefaults: true})
	require.NoError(t, err)

	_, err = New(Options{Escalations: escalation.NewQueue(1)})
	assert.Error(t, err)
	_, err = New(Options{Filter: f})
	assert.Error(t, err)
	_, err = New(Options{Filter: f, Escalations: escalation.NewQueue(1), Strategy: "nope"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	e, err := New(Options{Filter: f, Escalations: escalation.NewQueue(1)})
	require.NoError(t, err)
	assert.Equal(t, DefaultReasoningTimeout, e.timeouts.Reasoning)
}
