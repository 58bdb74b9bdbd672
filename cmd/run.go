package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/scheduler"
	"github.com/spigell/jobradar/internal/store"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, score and notify once for a single user or for every auto search user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("user", "u", "", "user id to run the search for")
	runCmd.Flags().BoolP("all", "a", false, "run every user with auto search enabled through the worker pool")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before notifications are sent")

	runCmd.MarkFlagsMutuallyExclusive("user", "all")
	runCmd.MarkFlagsOneRequired("user", "all")
}

// bootstrap builds the logger and the validated config shared by commands.
func bootstrap() (*zap.Logger, *Config, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Error("getting a config", zap.Error(err))
		return nil, nil, err
	}

	log.Info("starting the jobradar", zap.String("version", version))
	if file := viper.ConfigFileUsed(); file != "" {
		log.Debug("config file loaded", zap.String("file", file))
	}

	return log, config, nil
}

func run(cmd *cobra.Command) error {
	userID, _ := cmd.Flags().GetString("user")
	all, _ := cmd.Flags().GetBool("all")
	yes, _ := cmd.Flags().GetBool("yes")

	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	var (
		orchestrator *pipeline.Orchestrator
		sched        *scheduler.Scheduler
		st           store.Store
	)
	service := fx.New(
		coreModule(cfg, log),
		fx.Populate(&orchestrator, &sched, &st),
	)
	if err := service.Err(); err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("starting components: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), service.StopTimeout())
		defer cancel()
		if err := service.Stop(stopCtx); err != nil {
			log.Warn("stopping components", zap.Error(err))
		}
	}()

	target := fmt.Sprintf("user %q", userID)
	if all {
		target = "every auto search user"
	}
	if !yes {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Search jobs and send notifications for %s?", target),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		if action != PromptYes {
			log.Info("exiting", zap.String("reason", "got no from prompt"))
			return nil
		}
	}

	if all {
		return runAll(ctx, sched, log)
	}

	report := orchestrator.Run(ctx, userID, pipeline.Manual())
	logReport(log, report)
	if report.Err != nil {
		return report.Err
	}

	return printResults(ctx, st, userID, log)
}

func runAll(ctx context.Context, sched *scheduler.Scheduler, log *zap.Logger) error {
	reports, err := sched.RunAll(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		logReport(log, r)
		if r.State == pipeline.StateFailed {
			failed++
		}
	}

	log.Info("all runs finished", zap.Int("runs", len(reports)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(reports))
	}
	return nil
}

func printResults(ctx context.Context, st store.Store, userID string, log *zap.Logger) error {
	results, err := st.Results(ctx, userID)
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	summaries := make([]model.JobSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, model.SummaryOf(r))
	}

	// do not bother error since summaries are plain data
	pretty, _ := json.MarshalIndent(summaries, "", "  ")
	log.Info(string(pretty), zap.Int("results count", len(summaries)))
	return nil
}

func logReport(log *zap.Logger, r pipeline.Report) {
	fields := append(logger.RunFields(r.UserID, r.RunID),
		zap.String(logger.FieldRunState, string(r.State)),
		zap.Bool("skipped", r.Skipped),
		zap.Int("fetched", r.Fetched),
		zap.Int("dropped", r.Dropped),
		zap.Int("filtered", r.Filtered),
		zap.Int("merged", r.Merged),
		zap.Int("scored", r.Scored),
		zap.Int("model scored", r.ModelScored),
		zap.Int("immediate", r.Notifications.Immediate),
		zap.Int("digest", r.Notifications.Digest),
		zap.Any("sources", r.Sources),
		zap.Any("filters", r.Filters),
		zap.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)),
	)

	if r.Err != nil {
		log.Warn("run summary", append(fields, zap.Error(r.Err))...)
		return
	}
	log.Info("run summary", fields...)
}
