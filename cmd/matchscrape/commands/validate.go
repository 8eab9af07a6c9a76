package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/output"
	"github.com/jmylchreest/matchscrape/pkg/selector"
)

// errUnhealthy makes the command exit non-zero when recovery gave up.
var errUnhealthy = errors.New("selectors failed validation after recovery")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate selectors and recover them when they fail",
	Long: `Resolve selectors on the listing page, validate every category and run
the recovery strategies until the selectors are healthy or the attempt
budget is spent.

The command exits non-zero when the selectors are still failing.

Examples:
  # Validate against the live page and keep a report
  matchscrape validate --report validation-report.json

  # Tighter budget for a quick check
  MATCHSCRAPE_RECOVERY_MAX_ATTEMPTS=2 matchscrape validate --fetch-mode static`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	flags := validateCmd.Flags()
	flags.String("file", "", "saved HTML page to validate (implies --fetch-mode file)")
	flags.String("report", "", "write the validation report to this file (.json or .yaml)")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	file, _ := cmd.Flags().GetString("file")
	src := sourceFromViper(viper.GetViper(), file)

	s, err := openSession(ctx, viper.GetViper(), src)
	if err != nil {
		logger.Error("failed to open page", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	if _, err := s.ResolveSelectors(ctx); err != nil {
		return err
	}
	res := s.RunWithRecovery(ctx)
	if err := s.SaveHistory(); err != nil {
		logger.Warn("failed to save selector history", "error", err)
	}

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := output.WriteFile(path, s.Report()); err != nil {
			logger.Error("failed to write report", "path", path, "error", err)
			return err
		}
		logInfo("report written to %s", path)
	}

	if !viper.GetBool("quiet") {
		renderSelectors(os.Stderr, s.Selectors(), res.Failed)
	}
	m := res.Metrics
	logInfo("%s after %d attempt(s): %s validations, %s failures, %s recoveries",
		res.State,
		res.Attempts,
		humanize.Comma(int64(m.ValidationsPerformed)),
		humanize.Comma(int64(m.FailuresDetected)),
		humanize.Comma(int64(m.SuccessfulRecoveries)))

	if !res.Succeeded {
		logError("failing categories: %v", res.Failed)
		return errUnhealthy
	}
	return nil
}

// renderSelectors prints one row per category with its selector and
// whether it passed the last validation.
func renderSelectors(w io.Writer, set selector.ResolvedSet, failed []selector.Category) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Selector", "Valid"})
	for _, cat := range selector.Categories {
		sel, ok := set.Get(cat)
		if !ok {
			sel = "(unresolved)"
		}
		t.AppendRow(table.Row{cat, sel, !slices.Contains(failed, cat)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
