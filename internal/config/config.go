package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"curator/internal/classifier"
	"curator/internal/filter"
	"curator/internal/models"
	"curator/internal/policy"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// ProfileConfig is a child profile as written in config.yaml.
type ProfileConfig struct {
	AgeCategory          string   `mapstructure:"age_category"`
	Jurisdiction         string   `mapstructure:"jurisdiction"`
	VulnerabilityFactors []string `mapstructure:"vulnerability_factors"`
	SensitivityLevel     string   `mapstructure:"sensitivity_level"`
	ParentalControlLevel string   `mapstructure:"parental_control_level"`
}

// UserContext converts the profile into its normalized model form.
func (p ProfileConfig) UserContext() models.UserContext {
	factors := make([]models.VulnerabilityFactor, 0, len(p.VulnerabilityFactors))
	for _, f := range p.VulnerabilityFactors {
		factors = append(factors, models.VulnerabilityFactor(f))
	}
	return models.UserContext{
		AgeCategory:          models.AgeCategory(p.AgeCategory),
		Jurisdiction:         p.Jurisdiction,
		VulnerabilityFactors: factors,
		SensitivityLevel:     models.SensitivityLevel(p.SensitivityLevel),
		ParentalControlLevel: models.ParentalControlLevel(p.ParentalControlLevel),
	}.Normalize()
}

type Config struct {
	Database struct {
		Driver  string `mapstructure:"driver"` // "postgres", "sqlite" or "memory"
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Cache struct {
		Backend       string        `mapstructure:"backend"` // "memory", "redis" or "none"
		TTL           time.Duration `mapstructure:"ttl"`
		Shards        int           `mapstructure:"shards"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"cache"`

	Curation struct {
		Strategy string `mapstructure:"strategy"`
		Timeouts struct {
			Fast        time.Duration `mapstructure:"fast"`
			Classifiers time.Duration `mapstructure:"classifiers"`
			Reasoning   time.Duration `mapstructure:"reasoning"`
		} `mapstructure:"timeouts"`
		// Thresholds per strategy name.
		Thresholds map[string]policy.Thresholds `mapstructure:"thresholds"`
	} `mapstructure:"curation"`

	Filters struct {
		UseDefaults    bool                    `mapstructure:"use_defaults"`
		Blocklist      []string                `mapstructure:"blocklist"`
		Patterns       []filter.PatternRule    `mapstructure:"patterns"`
		BlockedDomains []string                `mapstructure:"blocked_domains"`
		Expressions    []filter.ExpressionRule `mapstructure:"expressions"`
	} `mapstructure:"filters"`

	Classifiers struct {
		Builtin  bool                      `mapstructure:"builtin"`
		Disabled []string                  `mapstructure:"disabled"`
		Quorum   int                       `mapstructure:"quorum"`
		Remote   []classifier.RemoteConfig `mapstructure:"remote"`
	} `mapstructure:"classifiers"`

	Reasoning struct {
		Provider       string `mapstructure:"provider"` // "openai", "gemini", "service" or "none"
		Model          string `mapstructure:"model"`
		PromptTemplate string `mapstructure:"prompt_template"`
		ServiceURL     string `mapstructure:"service_url"`
		ServiceAPIKey  string `mapstructure:"service_api_key"`
		OpenaiApiKey   string `mapstructure:"openai_api_key"`
		GoogleApiKey   string `mapstructure:"google_api_key"`
	} `mapstructure:"reasoning"`

	Escalation struct {
		Sink         string        `mapstructure:"sink"` // "asynq" or "store"
		BandCapacity int           `mapstructure:"band_capacity"`
		MaxRetries   uint64        `mapstructure:"max_retries"`
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	} `mapstructure:"escalation"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"logging"`

	Profiles map[string]ProfileConfig `mapstructure:"profiles"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

var strategyNames = []string{"fast_only", "full_reasoning", "hybrid"}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "curator.db")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.sweep_interval", time.Minute)

	v.SetDefault("curation.strategy", "hybrid")
	v.SetDefault("curation.timeouts.fast", 100*time.Millisecond)
	v.SetDefault("curation.timeouts.classifiers", 1000*time.Millisecond)
	v.SetDefault("curation.timeouts.reasoning", 15000*time.Millisecond)
	d := policy.DefaultThresholds()
	for _, name := range strategyNames {
		prefix := "curation.thresholds." + name + "."
		v.SetDefault(prefix+"sufficient_confidence", d.SufficientConfidence)
		v.SetDefault(prefix+"block_threshold", d.BlockThreshold)
		v.SetDefault(prefix+"caution_band", d.CautionBand)
		v.SetDefault(prefix+"scam_block_confidence", d.ScamBlockConfidence)
		v.SetDefault(prefix+"educational_only", d.EducationalOnly)
		v.SetDefault(prefix+"educational_minimum", d.EducationalMinimum)
	}

	v.SetDefault("filters.use_defaults", true)
	v.SetDefault("classifiers.builtin", true)
	v.SetDefault("classifiers.quorum", 0)

	v.SetDefault("reasoning.provider", "none")
	v.SetDefault("reasoning.prompt_template", "reasoning.txt")

	v.SetDefault("escalation.sink", "store")
	v.SetDefault("escalation.band_capacity", 256)
	v.SetDefault("escalation.max_retries", 5)
	v.SetDefault("escalation.retry_backoff", 200*time.Millisecond)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", map[string]int{
		"escalations_critical": 8,
		"escalations_high":     4,
		"escalations_normal":   2,
		"escalations_low":      1,
	})

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig reads config.yaml from the working directory or
// ~/.config/curator, then applies CURATOR_* environment overrides.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/curator")
	return Load(viper.GetViper())
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// curation.timeouts.fast -> CURATOR_CURATION_TIMEOUTS_FAST
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// provider keys also come from their conventional variables
	_ = v.BindEnv("reasoning.openai_api_key", "CURATOR_REASONING_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("reasoning.google_api_key", "CURATOR_REASONING_GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// no file is fine; defaults and env still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &config, nil
}

// UserProfiles converts the configured profiles into user contexts.
func (c *Config) UserProfiles() map[string]models.UserContext {
	out := make(map[string]models.UserContext, len(c.Profiles))
	for id, p := range c.Profiles {
		out[id] = p.UserContext()
	}
	return out
}

// FilterConfig builds the fast filter rule set.
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		Blocklist:      c.Filters.Blocklist,
		Patterns:       c.Filters.Patterns,
		BlockedDomains: c.Filters.BlockedDomains,
		Expressions:    c.Filters.Expressions,
		UseDefaults:    c.Filters.UseDefaults,
	}
}
