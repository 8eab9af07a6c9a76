package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/api"
	"github.com/jmylchreest/matchscrape/internal/job"
	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/metrics"
	"github.com/jmylchreest/matchscrape/internal/results"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored match results over HTTP",
	Long: `Start the results API and refresh the stored matches on a schedule.

Refreshes run from a cron expression (daily at midnight by default)
and, optionally, on a fixed interval. POST /api/refresh triggers one on
demand. A refresh requested while another is running is skipped.

Examples:
  # Default schedule, São Paulo time
  matchscrape serve

  # Cron only, refresh once at startup
  matchscrape serve --interval 0 --refresh-on-start

  # Replay a saved page on every refresh
  matchscrape serve --file page.html --schedule "*/5 * * * *"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":3000", "listen address")
	flags.String("schedule", "0 0 * * *", "cron expression for refreshes (empty disables)")
	flags.Duration("interval", 30*time.Minute, "fixed refresh interval (0 disables)")
	flags.String("timezone", "America/Sao_Paulo", "timezone for the schedule and result dates")
	flags.Duration("refresh-timeout", 10*time.Minute, "upper bound for a single refresh")
	flags.Bool("refresh-on-start", false, "run a refresh before serving")
	flags.String("file", "", "saved HTML page to replay on each refresh")

	_ = viper.BindPFlag("serve.addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("serve.schedule", flags.Lookup("schedule"))
	_ = viper.BindPFlag("serve.interval", flags.Lookup("interval"))
	_ = viper.BindPFlag("serve.timezone", flags.Lookup("timezone"))
	_ = viper.BindPFlag("serve.refresh_timeout", flags.Lookup("refresh-timeout"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := time.LoadLocation(viper.GetString("serve.timezone"))
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	store := results.NewStore(viper.GetString("results_dir"), loc)

	ref := &refresher{
		v:       viper.GetViper(),
		src:     sourceFromViper(viper.GetViper(), file),
		store:   store,
		metrics: metrics.New(nil),
	}
	// Fail fast on a bad recovery config rather than on the first refresh.
	if _, err := recoveryConfig(ref.v); err != nil {
		return err
	}

	runner := job.NewRunner(ref.run, viper.GetDuration("serve.refresh_timeout"))
	sched, err := job.NewScheduler(runner, job.Schedule{
		Cron:     viper.GetString("serve.schedule"),
		Interval: viper.GetDuration("serve.interval"),
		Location: loc,
	})
	if err != nil {
		return err
	}

	if startup, _ := cmd.Flags().GetBool("refresh-on-start"); startup {
		if _, err := runner.Run(ctx, "startup"); err != nil && !errors.Is(err, job.ErrBusy) {
			logger.Warn("startup refresh failed", "error", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := api.NewServer(api.Config{
		Addr:  viper.GetString("serve.addr"),
		Debug: viper.GetBool("debug"),
	}, api.Deps{
		Store:     store,
		Refresher: runner,
		Schedule:  sched,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logInfo("serving results from %s on %s", store.Dir(), viper.GetString("serve.addr"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	return srv.Shutdown(context.Background())
}
