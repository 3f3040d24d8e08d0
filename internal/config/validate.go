package config

import (
	"errors"
	"fmt"

	"curator/internal/classifier"
)

/*
Validate checks the cross-field rules viper cannot express:
- the selected store backend has its DSN or path
- Redis is configured when the cache or escalation hand-off uses it
- timeouts and thresholds are in range
- the reasoning provider has its credentials
- profiles use known enum values
*/
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Primary.DSN == "" {
			return errors.New("database.primary.dsn is required when database.driver is postgres")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required when database.driver is sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q must be postgres, sqlite or memory", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
		if c.Cache.TTL <= 0 {
			return errors.New("cache.ttl must be positive")
		}
	case "none":
	default:
		return fmt.Errorf("cache.backend %q must be memory, redis or none", c.Cache.Backend)
	}

	switch c.Escalation.Sink {
	case "asynq", "store":
	default:
		return fmt.Errorf("escalation.sink %q must be asynq or store", c.Escalation.Sink)
	}
	if c.Escalation.BandCapacity <= 0 {
		return errors.New("escalation.band_capacity must be positive")
	}
	if (c.Cache.Backend == "redis" || c.Escalation.Sink == "asynq") && c.Redis.Address == "" {
		return errors.New("redis.address is required for the redis cache or the asynq escalation sink")
	}

	if err := c.validateCuration(); err != nil {
		return err
	}
	if err := c.validateReasoning(); err != nil {
		return err
	}

	if c.Classifiers.Quorum < 0 {
		return errors.New("classifiers.quorum must not be negative")
	}
	seen := map[string]bool{}
	for i, rc := range c.Classifiers.Remote {
		if rc.Name == "" || rc.URL == "" {
			return fmt.Errorf("classifiers.remote[%d] needs a name and a url", i)
		}
		if seen[rc.Name] {
			return fmt.Errorf("classifiers.remote[%d]: duplicate name %q", i, rc.Name)
		}
		seen[rc.Name] = true
		switch rc.Dimension {
		case "", classifier.DimensionSafety, classifier.DimensionScam, classifier.DimensionEducational:
		default:
			return fmt.Errorf("classifiers.remote[%d]: unknown dimension %q", i, rc.Dimension)
		}
	}

	// Worker config
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	for id, p := range c.Profiles {
		if err := p.UserContext().Validate(); err != nil {
			return fmt.Errorf("profiles.%s: %w", id, err)
		}
	}

	for provider, models := range c.Pricing {
		for model, price := range models {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}
	return nil
}

func (c *Config) validateCuration() error {
	switch c.Curation.Strategy {
	case "fast_only", "full_reasoning", "hybrid", "llm_only", "multi_layer":
	default:
		return fmt.Errorf("curation.strategy %q is not a known strategy", c.Curation.Strategy)
	}
	t := c.Curation.Timeouts
	if t.Fast <= 0 || t.Classifiers <= 0 || t.Reasoning <= 0 {
		return errors.New("curation.timeouts must all be positive")
	}
	for name, th := range c.Curation.Thresholds {
		for field, v := range map[string]float64{
			"sufficient_confidence": th.SufficientConfidence,
			"block_threshold":       th.BlockThreshold,
			"caution_band":          th.CautionBand,
			"scam_block_confidence": th.ScamBlockConfidence,
			"educational_minimum":   th.EducationalMinimum,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("curation.thresholds.%s.%s must be within [0, 1], got %v", name, field, v)
			}
		}
	}
	return nil
}

func (c *Config) validateReasoning() error {
	r := c.Reasoning
	switch r.Provider {
	case "none":
	case "openai":
		if r.OpenaiApiKey == "" {
			return errors.New("reasoning.openai_api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
		if r.Model == "" {
			return errors.New("reasoning.model is required for the openai provider")
		}
	case "gemini":
		if r.GoogleApiKey == "" {
			return errors.New("reasoning.google_api_key (or GEMINI_API_KEY) is required for the gemini provider")
		}
		if r.Model == "" {
			return errors.New("reasoning.model is required for the gemini provider")
		}
	case "service":
		if r.ServiceURL == "" {
			return errors.New("reasoning.service_url is required for the service provider")
		}
	default:
		return fmt.Errorf("reasoning.provider %q must be openai, gemini, service or none", r.Provider)
	}
	if (c.Curation.Strategy == "full_reasoning" || c.Curation.Strategy == "llm_only") && r.Provider == "none" {
		return errors.New("curation.strategy full_reasoning needs a reasoning.provider")
	}
	return nil
}
