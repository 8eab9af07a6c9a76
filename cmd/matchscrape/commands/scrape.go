package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/output"
	"github.com/jmylchreest/matchscrape/internal/results"
	"github.com/jmylchreest/matchscrape/pkg/matchscrape"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Extract match records from the listing page",
	Long: `Open the listing page, resolve selectors, extract every match card
and repair the selectors when validation fails.

Records are written to stdout (or --output) and, unless --no-save is
given, to the dated results file the API serves.

Examples:
  # Live scrape with headless Chrome
  matchscrape scrape

  # Server-rendered HTML only
  matchscrape scrape --fetch-mode static -o matches.jsonl --format jsonl

  # Offline replay of a saved page
  matchscrape scrape --file testdata/jogos.html`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.String("file", "", "saved HTML page to replay (implies --fetch-mode file)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.Bool("metadata", false, "include per-card diagnostics in records")
	flags.Bool("no-save", false, "do not write the dated results file")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	file, _ := cmd.Flags().GetString("file")
	metadata, _ := cmd.Flags().GetBool("metadata")
	src := sourceFromViper(viper.GetViper(), file)
	logger.Debug("scrape command starting", "mode", src.Mode, "url", src.URL)

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, viper.GetViper(), src, matchscrape.WithMetadata(metadata))
	if err != nil {
		logger.Error("failed to open page", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	res, err := s.Scrape(ctx)
	if err != nil {
		logger.Error("scrape failed", "error", err)
		return err
	}
	if err := s.SaveHistory(); err != nil {
		logger.Warn("failed to save selector history", "error", err)
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave && len(res.Records) > 0 {
		store := results.NewStore(viper.GetString("results_dir"), scheduleLocation())
		day, err := store.Save(res.Records, s.ID(), s.URL())
		if err != nil {
			logger.Error("failed to save results", "error", err)
			return err
		}
		logger.Debug("results saved", "path", store.PathFor(day.Date))
	}

	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	writer, err := output.NewWriter(outFile, format, output.WithArray(true))
	if err != nil {
		return err
	}
	if err := writer.WriteAll(output.Items(res.Records)); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	m := s.Metrics()
	logInfo("%s matches in %s (%s validations, %.0f%% passed, avg %s, %d recovery attempts)",
		humanize.Comma(int64(len(res.Records))),
		res.Duration.Round(time.Millisecond),
		humanize.Comma(int64(m.ValidationsPerformed)),
		m.SuccessRate()*100,
		m.AverageLatency().Round(time.Microsecond),
		res.Recovery.Attempts)
	if !res.Recovery.Succeeded {
		logInfo("selectors are still failing: %v", res.Recovery.Failed)
	}
	return nil
}

// scheduleLocation is the timezone that names the results file.
func scheduleLocation() *time.Location {
	loc, err := time.LoadLocation(viper.GetString("serve.timezone"))
	if err != nil {
		logger.Warn("unknown timezone, using local time", "timezone", viper.GetString("serve.timezone"), "error", err)
		return time.Local
	}
	return loc
}
