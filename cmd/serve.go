package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/api"
	"github.com/spigell/jobradar/internal/events"
	"github.com/spigell/jobradar/internal/scheduler"
	"github.com/spigell/jobradar/internal/store"
	"github.com/spigell/jobradar/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled searches, listen for new users and serve the HTTP API",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address of the HTTP API (overrides api.addr)")
	viper.BindPFlag("api.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	service := fx.New(
		coreModule(cfg, log),
		fx.Invoke(
			registerTelemetry,
			registerScheduler,
			registerEvents,
			registerAPI,
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, service.StartTimeout())
	defer cancel()
	if err := service.Start(startCtx); err != nil {
		return fmt.Errorf("starting the %s: %w", app, err)
	}

	<-ctx.Done()
	log.Info("shutting down", zap.String("reason", "signal received"))

	stopCtx, cancelStop := context.WithTimeout(context.Background(), service.StopTimeout())
	defer cancelStop()
	return service.Stop(stopCtx)
}

func registerTelemetry(lc fx.Lifecycle, cfg *Config, log *zap.Logger) {
	shutdown := telemetry.Shutdown(func(context.Context) error { return nil })
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.Init(ctx, cfg.Telemetry, version)
			if err != nil {
				return err
			}
			if cfg.Telemetry.Endpoint != "" {
				log.Info("exporting traces", zap.String("endpoint", cfg.Telemetry.Endpoint))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
}

// registerScheduler runs the workers on a context of their own: the start
// context fx passes in expires as soon as startup is over.
func registerScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start(runCtx)
		},
		OnStop: func(ctx context.Context) error {
			defer cancel()
			return sched.Stop(ctx)
		},
	})
}

func registerEvents(lc fx.Lifecycle, cfg *Config, sched *scheduler.Scheduler, log *zap.Logger) error {
	if cfg.NATS.URL == "" {
		log.Info("nats url is not set, new user events are not consumed")
		return nil
	}

	nc, err := events.Connect(cfg.NATS)
	if err != nil {
		return err
	}
	// Hooks stop in reverse order, so the subscription is gone before the drain.
	lc.Append(fx.StopHook(nc.Drain))

	return events.NewSubscriber(cfg.NATS, nc, sched, log).Register(lc)
}

func registerAPI(lc fx.Lifecycle, cfg *Config, sched *scheduler.Scheduler, st store.Store, log *zap.Logger) {
	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr: cfg.API.Addr,
		Handler: api.NewRouter(api.Deps{
			Trigger: sched,
			Results: st,
			Version: version,
			Logger:  log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("serving the http api", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cfg.API.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.API.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
