// Package app builds the long-lived components from configuration and owns
// their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"curator/internal/cache"
	"curator/internal/classifier"
	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/engine"
	"curator/internal/escalation"
	"curator/internal/filter"
	"curator/internal/inputprocessor"
	"curator/internal/models"
	"curator/internal/profile"
	"curator/internal/store"
	"curator/internal/store/memory"
	"curator/internal/store/primary"
	"curator/internal/store/sqlite"
	"curator/pkg/reasoner"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-1.5-flash"
	drainTimeout       = 5 * time.Second
)

type App struct {
	Config *config.Config

	Store       store.Store
	Cache       cache.Cache
	JobClient   store.JobClient
	CostTracker costtracker.CostTracker

	Filter      *filter.Filter
	Classifiers *classifier.Registry
	Reasoner    reasoner.Reasoner

	Escalations *escalation.Queue
	Forwarder   *escalation.Forwarder
	Engine      *engine.Engine
	Profiles    *profile.Static
	Input       inputprocessor.Processor

	stopForwarder context.CancelFunc
}

// NewApp connects the configured backends and starts the escalation
// forwarder. Close releases everything NewApp acquired.
func NewApp(cfg *config.Config, inputProc inputprocessor.Processor) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg, Input: inputProc, CostTracker: costtracker.New()}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"store", app.initStore},
		{"cache", app.initCache},
		{"job client", app.initJobClient},
		{"fast filter", app.initFilter},
		{"classifiers", app.initClassifiers},
		{"reasoner", app.initReasoner},
		{"escalation", app.initEscalation},
		{"engine", app.initEngine},
		{"profiles", app.initProfiles},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			app.cleanupPartialInit()
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	log.WithFields(log.Fields{
		"store":       cfg.Database.Driver,
		"cache":       cfg.Cache.Backend,
		"strategy":    app.Engine.Strategy().Name,
		"reasoning":   cfg.Reasoning.Provider,
		"classifiers": app.Classifiers.Names(),
	}).Info("application initialization complete")
	return app, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "postgres":
		ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
		if err != nil {
			return err
		}
		a.Store = ps
	case "sqlite":
		s, err := sqlite.Open(ctx, a.Config.Database.SQLite.Path)
		if err != nil {
			return err
		}
		a.Store = s
	case "memory":
		a.Store = memory.New()
	default:
		return fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
	}
	return nil
}

func (a *App) initCache(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case "memory":
		a.Cache = cache.NewMemory(cfg.Cache.Shards, cfg.Cache.SweepInterval)
	case "redis":
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Cache = rc
	case "none", "":
		log.Info("result cache disabled")
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return nil
}

func (a *App) initJobClient(context.Context) error {
	if a.Config.Escalation.Sink != "asynq" {
		return nil
	}
	a.JobClient = store.NewAsynqJobClient(a.RedisClientOpt())
	return nil
}

// RedisClientOpt is the asynq connection shared by the job client and the
// worker server.
func (a *App) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) initFilter(context.Context) error {
	f, err := filter.New(a.Config.FilterConfig())
	if err != nil {
		return err
	}
	a.Filter = f
	log.WithField("rules", f.RuleCount()).Debug("fast filter ready")
	return nil
}

func (a *App) initClassifiers(context.Context) error {
	cfg := a.Config
	reg := classifier.NewRegistry()
	if cfg.Classifiers.Builtin {
		if err := classifier.RegisterDefaults(reg); err != nil {
			return err
		}
	}
	for _, rc := range cfg.Classifiers.Remote {
		c, err := classifier.NewRemoteClassifier(rc)
		if err != nil {
			return err
		}
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	for _, name := range cfg.Classifiers.Disabled {
		if !reg.Unregister(name) {
			log.WithField("classifier", name).Warn("disabled classifier is not registered")
		}
	}
	if reg.Len() == 0 {
		log.Warn("no classifiers registered; the classifier layer will always fail")
	}
	a.Classifiers = reg
	return nil
}

func (a *App) initReasoner(ctx context.Context) error {
	cfg := a.Config.Reasoning
	if cfg.Provider == "none" || cfg.Provider == "" {
		log.Info("reasoning provider disabled")
		return nil
	}

	prompt, err := config.LoadPromptContent(cfg.PromptTemplate, reasoner.DefaultPromptTemplate)
	if err != nil {
		return fmt.Errorf("load reasoning prompt: %w", err)
	}

	switch cfg.Provider {
	case "openai":
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		a.Reasoner = reasoner.NewOpenAIReasoner(openai.NewClient(cfg.OpenaiApiKey), model, prompt, a.CostTracker, a.Config.Pricing["openai"])
	case "gemini":
		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}
		r, err := reasoner.NewGeminiReasoner(ctx, cfg.GoogleApiKey, model, prompt, a.CostTracker, a.Config.Pricing["gemini"])
		if err != nil {
			return err
		}
		a.Reasoner = r
	case "service":
		r, err := reasoner.NewServiceReasoner(cfg.ServiceURL, cfg.ServiceAPIKey, a.Config.Curation.Timeouts.Reasoning)
		if err != nil {
			return err
		}
		a.Reasoner = r
	default:
		return fmt.Errorf("unknown reasoning provider %q", cfg.Provider)
	}
	return nil
}

func (a *App) initEscalation(context.Context) error {
	cfg := a.Config.Escalation
	a.Escalations = escalation.NewQueue(cfg.BandCapacity)

	var sink escalation.Sink
	if a.JobClient != nil {
		sink = escalation.SinkFunc(a.JobClient.EnqueueEscalation)
	} else {
		sink = escalation.SinkFunc(a.Store.SaveEscalation)
	}
	a.Forwarder = escalation.NewForwarder(a.Escalations, sink, escalation.ForwarderOptions{
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.RetryBackoff,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.stopForwarder = cancel
	go a.Forwarder.Run(ctx)
	return nil
}

func (a *App) initEngine(context.Context) error {
	cfg := a.Config
	opts := engine.Options{
		Filter:      a.Filter,
		Classifiers: classifier.NewLayer(a.Classifiers, cfg.Classifiers.Quorum),
		Reasoner:    a.Reasoner,
		Cache:       a.Cache,
		CacheTTL:    cfg.Cache.TTL,
		Escalations: a.Escalations,
		Reviews:     a.Store,
		Decisions:   a.Store,
		Timeouts: engine.Timeouts{
			Fast:        cfg.Curation.Timeouts.Fast,
			Classifiers: cfg.Curation.Timeouts.Classifiers,
			Reasoning:   cfg.Curation.Timeouts.Reasoning,
		},
		Thresholds: cfg.Curation.Thresholds,
		Strategy:   cfg.Curation.Strategy,
	}
	e, err := engine.New(opts)
	if err != nil {
		return err
	}
	a.Engine = e
	return nil
}

func (a *App) initProfiles(context.Context) error {
	p, err := profile.NewStatic(a.Config.UserProfiles())
	if err != nil {
		return err
	}
	a.Profiles = p
	return nil
}

// ResolveUserContext looks up a named profile, or validates an inline
// context when id is empty.
func (a *App) ResolveUserContext(ctx context.Context, id string, inline models.UserContext) (models.UserContext, error) {
	if id != "" {
		return a.Profiles.Resolve(ctx, id)
	}
	uc := inline.Normalize()
	if err := uc.Validate(); err != nil {
		return models.UserContext{}, err
	}
	return uc, nil
}

// Close stops accepting escalations, forwards what is queued, then releases
// the backends.
func (a *App) Close() error {
	if a.Escalations != nil && a.Forwarder != nil {
		a.Escalations.Close()
		select {
		case <-a.Forwarder.Done():
		case <-time.After(drainTimeout):
			log.WithField("pending", a.Escalations.Len()).Warn("escalation forwarder did not drain in time")
		}
	}
	return a.cleanupPartialInit()
}

func (a *App) cleanupPartialInit() error {
	var errs []error
	if a.stopForwarder != nil {
		a.stopForwarder()
	}
	if c, ok := a.Reasoner.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.JobClient != nil {
		errs = append(errs, a.JobClient.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		log.WithError(err).Warn("errors while closing application")
	}
	return err
}
