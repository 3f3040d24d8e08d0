// Package apihandlers exposes curation, strategy management and the review
// queue over HTTP.
package apihandlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"curator/internal/app"
	"curator/internal/costtracker"
	"curator/internal/engine"
	"curator/internal/escalation"
	"curator/internal/models"
	"curator/internal/profile"
	"curator/internal/store"
)

type APIHandler struct {
	Engine   *engine.Engine
	Store    store.Store
	Profiles profile.Resolver
	Queue    *escalation.Queue
	Costs    costtracker.CostTracker
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{
		Engine:   a.Engine,
		Store:    a.Store,
		Profiles: a.Profiles,
		Queue:    a.Escalations,
		Costs:    a.CostTracker,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/classify", h.ClassifyHandler)

		v1.GET("/strategy", h.GetStrategyHandler)
		v1.POST("/strategy", h.SetStrategyHandler)

		escalations := v1.Group("/escalations")
		{
			escalations.GET("", h.ListEscalationsHandler)
			escalations.GET("/:id", h.GetEscalationHandler)
			escalations.POST("/:id/review", h.ReviewEscalationHandler)
		}

		v1.GET("/decisions", h.ListDecisionsHandler)
		v1.GET("/stats", h.StatsHandler)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.HealthHandler)
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}

// ClassifyRequest names either a stored profile or an inline user context.
type ClassifyRequest struct {
	Content        models.ContentItem  `json:"content"`
	Profile        string              `json:"profile,omitempty"`
	ChildProfileID string              `json:"childProfileId,omitempty"` // older clients
	UserContext    *models.UserContext `json:"userContext,omitempty"`
}

func (h *APIHandler) ClassifyHandler(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Profile == "" {
		req.Profile = req.ChildProfileID
	}

	var uc models.UserContext
	switch {
	case req.Profile != "" && req.UserContext != nil:
		BadRequest(c, "profile and userContext are mutually exclusive")
		return
	case req.Profile != "":
		resolved, err := h.Profiles.Resolve(c.Request.Context(), req.Profile)
		if err != nil {
			RespondError(c, err)
			return
		}
		uc = resolved
	case req.UserContext != nil:
		uc = *req.UserContext
	}

	res, err := h.Engine.Curate(c.Request.Context(), req.Content, uc)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *APIHandler) GetStrategyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"active":     h.Engine.Strategy(),
		"strategies": h.Engine.Strategies(),
	}})
}

type setStrategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

func (h *APIHandler) SetStrategyHandler(c *gin.Context) {
	var req setStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	info, err := h.Engine.SetStrategy(req.Strategy)
	if err != nil {
		RespondError(c, err)
		return
	}
	log.WithField("strategy", info.Name).Info("strategy switched over API")
	c.JSON(http.StatusOK, gin.H{"data": info})
}

func (h *APIHandler) ListEscalationsHandler(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	status := c.DefaultQuery("status", models.EscalationStatusPending)
	if status == "all" {
		status = ""
	}
	items, err := h.Store.ListEscalations(c.Request.Context(), store.EscalationFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "limit": limit, "offset": offset})
}

func (h *APIHandler) GetEscalationHandler(c *gin.Context) {
	item, err := h.Store.GetEscalation(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (h *APIHandler) ReviewEscalationHandler(c *gin.Context) {
	var review models.EscalationReview
	if err := c.ShouldBindJSON(&review); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.Engine.ReviewEscalation(c.Request.Context(), c.Param("id"), review)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (h *APIHandler) ListDecisionsHandler(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	recs, err := h.Store.ListDecisions(c.Request.Context(), limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs, "limit": limit, "offset": offset})
}

type statsResponse struct {
	Strategy           string              `json:"strategy"`
	Decisions          store.DecisionStats `json:"decisions"`
	PendingEscalations int                 `json:"pendingEscalations"`
	QueuedEscalations  map[string]int      `json:"queuedEscalations"`
	Cost               costtracker.Summary `json:"cost"`
}

func (h *APIHandler) StatsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	decisions, err := h.Store.DecisionStats(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	pending, err := h.Store.CountEscalations(ctx, models.EscalationStatusPending)
	if err != nil {
		RespondError(c, err)
		return
	}
	resp := statsResponse{
		Strategy:           h.Engine.Strategy().Name,
		Decisions:          decisions,
		PendingEscalations: pending,
		QueuedEscalations:  make(map[string]int, models.NumPriorities),
	}
	if h.Queue != nil {
		for p := models.Priority(0); p < models.NumPriorities; p++ {
			resp.QueuedEscalations[p.String()] = h.Queue.BandLen(p)
		}
	}
	if h.Costs != nil {
		if resp.Cost, err = h.Costs.Summary(ctx); err != nil {
			RespondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		JSONError(c, http.StatusServiceUnavailable, "unhealthy", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "strategy": h.Engine.Strategy().Name})
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		BadRequest(c, "limit must be a positive integer")
		return 0, 0, false
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		BadRequest(c, "offset must be a non-negative integer")
		return 0, 0, false
	}
	return limit, offset, true
}
