package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flockops/safeguard/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replay vendor updates for a date window",
	Long: `Fetch background checks and trainings from the vendor list endpoints and
reconcile them locally. Deliveries the webhook receiver missed are picked up
here; records already in their final state are recognized and skipped.

Examples:
  # Replay the last 30 days
  safeguard import

  # Replay an explicit window
  safeguard import --start 2026-08-01 --end 2026-08-31`,
	RunE: runImport,
}

var (
	importStart string
	importEnd   string
	importDays  int
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importStart, "start", "",
		"window start date (YYYY-MM-DD)")
	importCmd.Flags().StringVar(&importEnd, "end", "",
		"window end date (YYYY-MM-DD)")
	importCmd.Flags().IntVar(&importDays, "days", 30,
		"window length when --start is not given")
}

func runImport(cmd *cobra.Command, _ []string) error {
	start, end, err := importWindow(time.Now())
	if err != nil {
		return err
	}

	logger := newLogger()
	rt, err := buildRuntime(logger)
	if err != nil {
		return err
	}
	defer rt.close()

	im := importer.New(rt.vendor, rt.engine, logger)
	checks, trainings, err := im.RunBoth(cmd.Context(), start, end)
	if err != nil {
		return err
	}

	fmt.Printf("checks:    %d applied, %d skipped, %d failed (%d pages)\n",
		checks.Applied, checks.Skipped, checks.Failed, checks.Pages)
	fmt.Printf("trainings: %d applied, %d skipped, %d failed (%d pages)\n",
		trainings.Applied, trainings.Skipped, trainings.Failed, trainings.Pages)
	return nil
}

// importWindow resolves the flags into a concrete date window.
func importWindow(now time.Time) (start, end time.Time, err error) {
	if importEnd != "" {
		end, err = time.Parse("2006-01-02", importEnd)
		if err != nil {
			return start, end, fmt.Errorf("parsing --end: %w", err)
		}
	} else {
		end = now
	}

	if importStart != "" {
		start, err = time.Parse("2006-01-02", importStart)
		if err != nil {
			return start, end, fmt.Errorf("parsing --start: %w", err)
		}
	} else {
		start = end.AddDate(0, 0, -importDays)
	}

	if start.After(end) {
		return start, end, fmt.Errorf("window start %s is after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}
