package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func sampleResult() models.CurationResult {
	return models.CurationResult{
		Action:        models.ActionCaution,
		Reason:        "safety score within caution band",
		Confidence:    0.7,
		StrategyUsed:  "hybrid",
		LayersInvoked: []string{"fast_filter", "classifiers"},
		Classification: models.ClassificationResult{
			Safety: &models.SafetyDimension{Score: 0.55, Warnings: []string{"toxic_language"}, Confidence: 0.7},
		},
	}
}

func TestFingerprint(t *testing.T) {
	item := models.ContentItem{Text: "hello", SourceHint: "example.com"}
	a := models.UserContext{AgeCategory: models.AgeAdult, Jurisdiction: "us",
		VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorRecentLoss, models.FactorElderly}}
	b := models.UserContext{AgeCategory: models.AgeAdult, Jurisdiction: "US", SensitivityLevel: models.SensitivityMedium,
		VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorElderly, models.FactorRecentLoss, models.FactorElderly}}

	assert.Equal(t, Fingerprint(item, a), Fingerprint(item, b))
	assert.Len(t, Fingerprint(item, a), 64)

	assert.NotEqual(t, Fingerprint(item, a), Fingerprint(models.ContentItem{Text: "hello"}, a))
	assert.NotEqual(t, Fingerprint(item, a), Fingerprint(item, models.UserContext{AgeCategory: models.AgeUnder13}))
	// field boundaries are not ambiguous
	assert.NotEqual(t,
		Fingerprint(models.ContentItem{Text: "ab", SourceHint: "c"}, a),
		Fingerprint(models.ContentItem{Text: "a", SourceHint: "bc"}, a))

	assert.NotEqual(t, Key("hybrid", "abc"), Key("fast_only", "abc"))
}

func TestMemory_GetPutInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 0)
	defer m.Close()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k", sampleResult(), time.Minute))
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	// mutating the returned copy must not leak into the cache
	got.Classification.Safety.Warnings[0] = "changed"
	got.LayersInvoked[0] = "changed"
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, sampleResult(), again)

	require.NoError(t, m.Invalidate(ctx, "k"))
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, 0)
	defer m.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, "k", sampleResult(), time.Second))
	require.NoError(t, m.Put(ctx, "zero-ttl", sampleResult(), 0))
	_, ok := m.Get(ctx, "zero-ttl")
	assert.False(t, ok)

	now = now.Add(999 * time.Millisecond)
	_, ok = m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.purgeExpired())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_SweeperStops(t *testing.T) {
	m := NewMemory(2, 5*time.Millisecond)
	require.NoError(t, m.Put(context.Background(), "k", sampleResult(), time.Millisecond))
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8, 0)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("hybrid", string(rune('a'+i%8)))
			for j := 0; j < 100; j++ {
				_ = m.Put(ctx, key, sampleResult(), time.Minute)
				if r, ok := m.Get(ctx, key); ok {
					assert.Equal(t, models.ActionCaution, r.Action)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, m.Len())
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	r := newRedisWithClient(fake)

	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, "k", sampleResult(), 30*time.Second))
	assert.Equal(t, 30*time.Second, fake.ttl[redisKeyPrefix+"k"])

	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	require.NoError(t, r.Invalidate(ctx, "k"))
	_, ok = r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	fake := newFakeRedis()
	fake.data[redisKeyPrefix+"k"] = "{not json"
	_, ok := newRedisWithClient(fake).Get(context.Background(), "k")
	assert.False(t, ok)
}
