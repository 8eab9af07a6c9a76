// Package commands implements the CLI commands for matchscrape.
package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/job"
	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/recovery"
)

// DefaultURL is the match listing scraped when no URL is configured.
const DefaultURL = "https://onefootball.com/pt-br/jogos"

var rootCmd = &cobra.Command{
	Use:   "matchscrape",
	Short: "Self-healing scraper for football match listings",
	Long: `Matchscrape extracts match records from a listing page whose markup
changes without notice.

Selectors are resolved from a catalog of candidates, validated after
every run and repaired by a chain of recovery strategies when the page
drifts. What worked is remembered in dated history files.

Examples:
  # Scrape today's matches with a headless browser
  matchscrape scrape

  # Replay a saved page without touching the network
  matchscrape scrape --file page.html --format yaml

  # Validate selectors and write a recovery report
  matchscrape validate --report report.json

  # Serve stored results with a daily refresh
  matchscrape serve --addr :3000`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.matchscrape.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("log-json", false, "write logs as JSON")

	// Page settings
	flags.StringP("url", "u", DefaultURL, "match listing URL")
	flags.String("fetch-mode", "dynamic", "fetch mode: dynamic, static, auto, file")
	flags.Duration("timeout", 60*time.Second, "navigation timeout")
	flags.String("history-dir", "historico", "directory for selector history files")
	flags.String("results-dir", "data", "directory for dated match results")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("url", flags.Lookup("url"))
	_ = viper.BindPFlag("fetch_mode", flags.Lookup("fetch-mode"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("history_dir", flags.Lookup("history-dir"))
	_ = viper.BindPFlag("results_dir", flags.Lookup("results-dir"))

	setDefaults(viper.GetViper())
}

// setDefaults registers the nested keys that have no flag.
func setDefaults(v *viper.Viper) {
	rc := recovery.DefaultConfig()
	names := make([]string, len(rc.Strategies))
	for i, s := range rc.Strategies {
		names[i] = string(s)
	}
	v.SetDefault("recovery.max_attempts", rc.MaxAttempts)
	v.SetDefault("recovery.attempt_delay", rc.AttemptDelay)
	v.SetDefault("recovery.validation_timeout", rc.ValidationTimeout)
	v.SetDefault("recovery.navigation_timeout", rc.NavigationTimeout)
	v.SetDefault("recovery.reload_settle", rc.ReloadSettle)
	v.SetDefault("recovery.strategies", names)
	v.SetDefault("recovery.max_dom_depth", rc.MaxDOMDepth)
	v.SetDefault("recovery.majority_threshold", rc.MajorityThreshold)

	sch := job.DefaultSchedule()
	v.SetDefault("serve.addr", ":3000")
	v.SetDefault("serve.schedule", sch.Cron)
	v.SetDefault("serve.interval", sch.Interval)
	v.SetDefault("serve.timezone", sch.Location.String())
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".matchscrape")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. MATCHSCRAPE_RECOVERY_MAX_ATTEMPTS.
	// A .env file in the working directory fills in unset ones.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logError("load .env: %v", err)
	}
	viper.SetEnvPrefix("MATCHSCRAPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// initLogger applies the logging flags.
func initLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
