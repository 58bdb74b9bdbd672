package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/ai/gateway"
	"github.com/spigell/jobradar/internal/ai/gemini"
	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/scheduler"
	"github.com/spigell/jobradar/internal/scoring"
	"github.com/spigell/jobradar/internal/source"
	"github.com/spigell/jobradar/internal/source/adzuna"
	"github.com/spigell/jobradar/internal/source/headhunter"
	"github.com/spigell/jobradar/internal/source/scrapesvc"
	"github.com/spigell/jobradar/internal/store"
)

const connectTimeout = 10 * time.Second

// coreModule provides everything needed to run the pipeline. Long-lived
// surfaces (timer, HTTP, NATS) are added by serve.
func coreModule(cfg *Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			newClock,
			newCache,
			newStore,
			newLimiter,
			newHTTPClient,
			newFetcher,
			newConnectors,
			newMatcher,
			newScorer,
			newDispatcher,
			newNotifier,
			newOrchestrator,
			newScheduler,
		),
	)
}

func newClock() clock.Clock {
	return clock.System{}
}

func newCache(lc fx.Lifecycle, cfg *Config, clk clock.Clock, log *zap.Logger) cache.Store {
	if cfg.Redis.Addr != "" {
		redisStore := cache.NewRedis(cfg.Redis)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := redisStore.Ping(ctx); err != nil {
					return fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return redisStore.Close()
			},
		})
		log.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
		return redisStore
	}

	mem := cache.NewMemory(clk)
	sweepCache(lc, mem, cfg.Cache.SweepInterval, log)
	log.Info("using in-process cache")
	return mem
}

// sweepCache evicts expired entries of the in-process cache on an interval
// while the application runs.
func sweepCache(lc fx.Lifecycle, mem *cache.Memory, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := mem.Sweep(); n > 0 {
							log.Debug("swept expired cache entries", zap.Int("evicted", n), zap.Int("left", mem.Len()))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func newStore(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (store.Store, error) {
	users, err := loadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		mem := store.NewMemory()
		for _, u := range users {
			mem.PutUser(u.Preferences, u.Profile)
		}
		log.Info("using in-memory store", zap.Int("users", len(users)))
		return mem, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	for _, u := range users {
		if err := pg.PutUser(ctx, u.Preferences, u.Profile); err != nil {
			pg.Close()
			return nil, err
		}
	}
	lc.Append(fx.StopHook(pg.Close))

	log.Info("using postgres store", zap.Int("seeded users", len(users)))
	return pg, nil
}

func newLimiter(cfg *Config, clk clock.Clock) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit, clk)
}

func newHTTPClient(cfg *Config, limiter *ratelimit.Limiter, log *zap.Logger) *httpclient.Client {
	return httpclient.New(limiter, cfg.Retry, log)
}

func newFetcher(cfg *Config, shared cache.Store, client *httpclient.Client, log *zap.Logger) *source.Fetcher {
	return source.NewFetcher(shared, client, cfg.Cache.ListingTTL, log)
}

func newConnectors(cfg *Config, fetcher *source.Fetcher, log *zap.Logger) []source.Connector {
	s := cfg.Sources

	var connectors []source.Connector
	if s.Adzuna.Enabled {
		connectors = append(connectors, adzuna.New(fetcher, s.Adzuna, log))
	}
	if s.Headhunter.Enabled {
		connectors = append(connectors, headhunter.New(fetcher, s.Headhunter, log))
	}
	if s.LinkedIn.Enabled {
		connectors = append(connectors, scrapesvc.NewLinkedIn(fetcher, s.LinkedIn, log))
	}
	if s.Indeed.Enabled {
		connectors = append(connectors, scrapesvc.NewIndeed(fetcher, s.Indeed, log))
	}

	names := make([]string, 0, len(connectors))
	for _, c := range connectors {
		names = append(names, c.Name())
	}
	if len(names) == 0 {
		log.Warn("no sources are enabled, every run will fail", zap.String("hint", "enable at least one entry under sources"))
	} else {
		log.Info("sources enabled", zap.Strings("sources", names))
	}

	return connectors
}

// newMatcher returns a nil matcher when model scoring is disabled, which
// keeps the scorer algorithmic only.
func newMatcher(cfg *Config, shared cache.Store, log *zap.Logger) (ai.Matcher, error) {
	if !cfg.AI.Enabled {
		log.Info("model scoring is disabled")
		return nil, nil
	}

	generator, err := gemini.NewGenerator(context.Background(), cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key or GEMINI_API_KEY_FILE)", err)
	}
	matcher := gemini.NewMatcher(generator, log, cfg.AI.Gemini.MaxLogLength)

	opts := []gateway.Option{gateway.WithRetry(cfg.Retry)}
	if cfg.AI.CacheTTL > 0 {
		opts = append(opts, gateway.WithTTL(cfg.AI.CacheTTL))
	}
	if cfg.AI.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(cfg.AI.Timeout))
	}

	return gateway.New(matcher, shared, log, opts...), nil
}

func newScorer(cfg *Config, matcher ai.Matcher, clk clock.Clock, log *zap.Logger) *scoring.Scorer {
	return scoring.New(cfg.Scoring, matcher, clk, log)
}

func newDispatcher(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (notify.Dispatcher, error) {
	if cfg.Notify.AMQP.URL == "" {
		log.Info("notifications are written to the log", zap.String("hint", "set notify.amqp.url to publish them"))
		return notify.NewLogDispatcher(log), nil
	}

	dispatcher, err := notify.DialAMQP(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Queue)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(dispatcher.Close))

	log.Info("notifications are published to amqp", zap.String("queue", cfg.Notify.AMQP.Queue))
	return dispatcher, nil
}

func newNotifier(cfg *Config, st store.Store, dispatcher notify.Dispatcher, clk clock.Clock, log *zap.Logger) *notify.Notifier {
	return notify.NewNotifier(notify.NewGate(cfg.Notify.Gate), st, dispatcher, clk, log)
}

func newOrchestrator(
	cfg *Config,
	st store.Store,
	connectors []source.Connector,
	scorer *scoring.Scorer,
	notifier *notify.Notifier,
	clk clock.Clock,
	log *zap.Logger,
) *pipeline.Orchestrator {
	return pipeline.New(cfg.Pipeline, pipeline.Deps{
		Store:      st,
		Connectors: connectors,
		Normalizer: normalize.New(nil, clk),
		Scorer:     scorer,
		Notifier:   notifier,
		Clock:      clk,
		Logger:     log,
	})
}

func newScheduler(cfg *Config, orchestrator *pipeline.Orchestrator, st store.Store, clk clock.Clock, log *zap.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(cfg.Scheduler, orchestrator, st, clk, log)
}
