package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/cache"
	"curator/internal/classifier"
	"curator/internal/costtracker"
	"curator/internal/engine"
	"curator/internal/escalation"
	"curator/internal/filter"
	"curator/internal/models"
	"curator/internal/profile"
	"curator/internal/store/memory"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	queue  *escalation.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f, err := filter.New(filter.Config{UseDefaults: true})
	require.NoError(t, err)
	reg := classifier.NewRegistry()
	require.NoError(t, classifier.RegisterDefaults(reg))
	profiles, err := profile.NewStatic(map[string]models.UserContext{
		"kid": {AgeCategory: models.AgeUnder13, SensitivityLevel: models.SensitivityHigh},
	})
	require.NoError(t, err)

	st := memory.New()
	q := escalation.NewQueue(16)
	eng, err := engine.New(engine.Options{
		Filter:      f,
		Classifiers: classifier.NewLayer(reg, 0),
		Cache:       cache.NewMemory(4, 0),
		Escalations: q,
		Reviews:     st,
		Decisions:   st,
	})
	require.NoError(t, err)

	h := &APIHandler{Engine: eng, Store: st, Profiles: profiles, Queue: q, Costs: costtracker.New()}
	return &testServer{router: NewRouter(h), store: st, queue: q}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestClassifyHandler(t *testing.T) {
	s := newTestServer(t)

	t.Run("profile", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/classify", gin.H{
			"content": gin.H{"text": "Photosynthesis lets plants turn sunlight into energy."},
			"profile": "kid",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Data models.CurationResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "hybrid", resp.Data.StrategyUsed)
		assert.Contains(t, resp.Data.LayersInvoked, filter.LayerName)
	})

	t.Run("inline context", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/classify", gin.H{
			"content":     gin.H{"text": "The museum opens at nine on Saturdays."},
			"userContext": gin.H{"ageCategory": "adult"},
		})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	testCases := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{name: "empty text", body: gin.H{"content": gin.H{"text": ""}}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "unknown age", body: gin.H{"content": gin.H{"text": "hi"}, "userContext": gin.H{"ageCategory": "toddler"}}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "unknown child profile", body: gin.H{"content": gin.H{"text": "hi"}, "childProfileId": "ghost"}, status: http.StatusNotFound, code: "not_found"},
		{name: "unknown profile", body: gin.H{"content": gin.H{"text": "hi"}, "profile": "ghost"}, status: http.StatusNotFound, code: "not_found"},
		{name: "both profile and context", body: gin.H{"content": gin.H{"text": "hi"}, "profile": "kid", "userContext": gin.H{}}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "not json", body: "plain string", status: http.StatusBadRequest, code: "bad_request"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/classify", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestStrategyHandlers(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/strategy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data struct {
			Active     engine.StrategyInfo   `json:"active"`
			Strategies []engine.StrategyInfo `json:"strategies"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hybrid", got.Data.Active.Name)
	assert.Len(t, got.Data.Strategies, 3)

	w = s.do(t, http.MethodPost, "/api/v1/strategy", gin.H{"strategy": "multi_layer"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/strategy", gin.H{"strategy": "fast_only"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/classify", gin.H{"content": gin.H{"text": "Tea time at four."}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"strategyUsed":"fast_only"`)

	w = s.do(t, http.MethodPost, "/api/v1/strategy", gin.H{"strategy": "coin_flip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/strategy", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscalationHandlers(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.SaveEscalation(ctx, &models.EscalationItem{
		ID:         "esc-1",
		Content:    models.ContentItem{Text: "ambiguous"},
		Priority:   models.PriorityHigh,
		Reason:     "low confidence",
		Status:     models.EscalationStatusPending,
		EnqueuedAt: time.Now(),
	}))

	w := s.do(t, http.MethodGet, "/api/v1/escalations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"esc-1"`)

	w = s.do(t, http.MethodGet, "/api/v1/escalations?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/escalations/esc-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/escalations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	review := gin.H{"action": "block", "reviewer": "mod-7", "note": "phishing"}
	w = s.do(t, http.MethodPost, "/api/v1/escalations/esc-1/review", gin.H{"action": "shrug", "reviewer": "mod-7"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/escalations/esc-1/review", review)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"reviewed"`)

	w = s.do(t, http.MethodPost, "/api/v1/escalations/esc-1/review", review)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/api/v1/escalations/ghost/review", review)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/escalations?status=all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"esc-1"`)
}

func TestStatsAndHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/classify", gin.H{"content": gin.H{"text": "The library is open late on Thursdays."}})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Data statsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Data.Decisions.Total)
	assert.Len(t, stats.Data.QueuedEscalations, models.NumPriorities)

	w = s.do(t, http.MethodGet, "/api/v1/decisions?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "curator_curations_total")
}
