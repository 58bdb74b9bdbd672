package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/events"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
	"github.com/spigell/jobradar/internal/scheduler"
	"github.com/spigell/jobradar/internal/scoring"
	"github.com/spigell/jobradar/internal/secrets"
	"github.com/spigell/jobradar/internal/source/adzuna"
	"github.com/spigell/jobradar/internal/source/headhunter"
	"github.com/spigell/jobradar/internal/source/scrapesvc"
	"github.com/spigell/jobradar/internal/telemetry"
)

type Config struct {
	// DatabaseURL selects PostgreSQL. Without it users live in memory and
	// come from SeedFile.
	DatabaseURL string `mapstructure:"database-url"`
	SeedFile    string `mapstructure:"seed-file"`

	Cache     CacheConfig        `mapstructure:"cache"`
	Redis     cache.RedisOptions `mapstructure:"redis"`
	RateLimit ratelimit.Config   `mapstructure:"rate-limit"`
	Retry     retry.Policy       `mapstructure:"retry"`
	Sources   SourcesConfig      `mapstructure:"sources"`
	AI        AIConfig           `mapstructure:"ai"`
	Scoring   scoring.Config     `mapstructure:"scoring"`
	Notify    NotifyConfig       `mapstructure:"notify"`
	Pipeline  pipeline.Config    `mapstructure:"pipeline"`
	Scheduler scheduler.Config   `mapstructure:"scheduler"`
	NATS      events.Config      `mapstructure:"nats"`
	API       APIConfig          `mapstructure:"api"`
	Telemetry telemetry.Config   `mapstructure:"telemetry"`
	Secrets   SecretFiles        `mapstructure:"secrets"`
}

type CacheConfig struct {
	ListingTTL    time.Duration `mapstructure:"listing-ttl"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

type SourcesConfig struct {
	Adzuna     adzuna.Config     `mapstructure:"adzuna"`
	Headhunter headhunter.Config `mapstructure:"headhunter"`
	LinkedIn   scrapesvc.Config  `mapstructure:"linkedin"`
	Indeed     scrapesvc.Config  `mapstructure:"indeed"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache-ttl"`
	Gemini   GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type NotifyConfig struct {
	Gate notify.GateConfig `mapstructure:"gate"`
	AMQP AMQPConfig        `mapstructure:"amqp"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type APIConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// SecretFiles point at files holding credentials. A file wins over the
// inline value of the same credential.
type SecretFiles struct {
	AdzunaAppKey    string `mapstructure:"adzuna-app-key-file"`
	HeadhunterToken string `mapstructure:"headhunter-token-file"`
	ScrapeAPIKey    string `mapstructure:"scrapesvc-api-key-file"`
	GeminiAPIKey    string `mapstructure:"gemini-api-key-file"`
}

func setDefaults() {
	viper.SetDefault("cache.listing-ttl", cache.ListingTTL)
	viper.SetDefault("cache.sweep-interval", 10*time.Minute)

	viper.SetDefault("rate-limit.default.max-requests", 100)
	viper.SetDefault("rate-limit.default.size", ratelimit.DefaultWindow)

	policy := retry.DefaultPolicy()
	viper.SetDefault("retry.max-attempts", policy.MaxAttempts)
	viper.SetDefault("retry.base", policy.Base)
	viper.SetDefault("retry.jitter", policy.Jitter)
	viper.SetDefault("retry.attempt-timeout", policy.AttemptTimeout)

	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("ai.cache-ttl", cache.ModelTTL)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")

	weights := model.DefaultWeights()
	viper.SetDefault("scoring.weights.skills", weights.Skills)
	viper.SetDefault("scoring.weights.experience", weights.Experience)
	viper.SetDefault("scoring.weights.location", weights.Location)
	viper.SetDefault("scoring.weights.salary", weights.Salary)
	viper.SetDefault("scoring.gate-threshold", scoring.DefaultGateThreshold)
	viper.SetDefault("scoring.algorithmic-blend", scoring.DefaultAlgorithmicBlend)
	viper.SetDefault("scoring.model-blend", scoring.DefaultModelBlend)

	viper.SetDefault("notify.gate.immediate-floor", notify.DefaultImmediateFloor)
	viper.SetDefault("notify.gate.digest-floor", notify.DefaultDigestFloor)
	viper.SetDefault("notify.gate.daily-cap", notify.DefaultDailyCap)
	viper.SetDefault("notify.amqp.queue", notify.DefaultQueue)

	viper.SetDefault("pipeline.posted-within", pipeline.DefaultPostedWithin)
	viper.SetDefault("pipeline.score-workers", pipeline.DefaultScoreWorkers)

	viper.SetDefault("scheduler.workers", scheduler.DefaultWorkers)
	viper.SetDefault("scheduler.queue-size", scheduler.DefaultQueueSize)
	viper.SetDefault("scheduler.spec", scheduler.DefaultSpec)
	viper.SetDefault("scheduler.weekly-day", scheduler.DefaultWeeklyDay)

	viper.SetDefault("nats.subject", events.DefaultSubject)
	viper.SetDefault("nats.queue", events.DefaultQueue)

	viper.SetDefault("api.addr", ":8080")
	viper.SetDefault("api.shutdown-timeout", 10*time.Second)

	viper.SetDefault("telemetry.service-name", app)
	viper.SetDefault("telemetry.sample-ratio", 1.0)

	// Keys without a default are invisible to AutomaticEnv on Unmarshal.
	for _, key := range []string{
		"database-url", "seed-file",
		"redis.addr", "redis.password",
		"sources.adzuna.app-key", "sources.headhunter.token",
		"sources.linkedin.api-key", "sources.indeed.api-key",
		"ai.gemini.api-key", "nats.url", "notify.amqp.url", "telemetry.endpoint",
	} {
		viper.SetDefault(key, "")
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if config == nil {
		return nil, fmt.Errorf("config is empty")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := config.resolveSecrets(); err != nil {
		return nil, err
	}

	return config, nil
}

// resolveSecrets replaces inline credentials with the contents of their
// secret files when those are configured.
func (c *Config) resolveSecrets() error {
	targets := []struct {
		name  string
		file  string
		value *string
	}{
		{"adzuna app key", c.Secrets.AdzunaAppKey, &c.Sources.Adzuna.AppKey},
		{"headhunter token", c.Secrets.HeadhunterToken, &c.Sources.Headhunter.Token},
		{"scraping service api key", c.Secrets.ScrapeAPIKey, &c.Sources.LinkedIn.APIKey},
		{"scraping service api key", c.Secrets.ScrapeAPIKey, &c.Sources.Indeed.APIKey},
		{"gemini api key", c.Secrets.GeminiAPIKey, &c.AI.Gemini.APIKey},
	}

	for _, t := range targets {
		secret, err := secrets.Optional(secrets.Source{Name: t.name, File: t.file, Value: *t.value})
		if err != nil {
			return err
		}
		*t.value = secret
	}
	return nil
}

// seedUser is one entry of the seed file.
type seedUser struct {
	Preferences model.Preferences `json:"preferences"`
	Profile     model.Profile     `json:"profile"`
}

func loadSeed(path string) ([]seedUser, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %q: %w", path, err)
	}

	var users []seedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse seed file %q: %w", path, err)
	}

	for i := range users {
		if strings.TrimSpace(users[i].Preferences.UserID) == "" {
			return nil, fmt.Errorf("seed file %q: entry %d has no user_id", path, i)
		}
		if users[i].Profile.UserID == "" {
			users[i].Profile.UserID = users[i].Preferences.UserID
		}
	}
	return users, nil
}
