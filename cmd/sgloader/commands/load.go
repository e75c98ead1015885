package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/internal/loader"
)

// loadCmd runs a loader from local exports instead of the browser
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load screener exports from local files",
	Long: `Runs a loader pipeline on CSV exports already on disk.

The rows go through the same transform, reconcile and persistence path as
the scheduled jobs, under the same job lock and screener log.

Subcommands:
  ohl         - Open-High-Low exports (purges today's OHL rows first)
  alerts      - Intraday alerts export (merged into today's rows)
  tv-signals  - TradingView alerts (JSON array)

Example:
  go run ./cmd/sgloader load ohl --file cash.csv --fno-file fno.csv
  go run ./cmd/sgloader load alerts --file alerts.csv
  go run ./cmd/sgloader load tv-signals --file signals.json`,
}

var (
	loadFile    string
	loadFNOFile string
)

var (
	loadOHLCmd = &cobra.Command{
		Use:   "ohl",
		Short: "Load Open-High-Low exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := []loader.LocalFile{{Path: loadFile, StockType: intrascreener.StockTypeCash}}
			if loadFNOFile != "" {
				files = append(files, loader.LocalFile{Path: loadFNOFile, StockType: intrascreener.StockTypeFNO})
			}
			return runFileLoad(loader.OpenHighLowJob(loader.FileSource(files...)))
		},
	}

	loadAlertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "Load an intraday alerts export",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileLoad(loader.IntradayAlertsJob(loader.FileSource(loader.LocalFile{Path: loadFile})))
		},
	}

	loadTVCmd = &cobra.Command{
		Use:   "tv-signals",
		Short: "Load TradingView alerts from a JSON file",
		RunE:  runTVLoad,
	}
)

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.AddCommand(loadOHLCmd, loadAlertsCmd, loadTVCmd)

	loadCmd.PersistentFlags().StringVar(&loadFile, "file", "", "export file to load")
	loadCmd.MarkPersistentFlagRequired("file")
	loadOHLCmd.Flags().StringVar(&loadFNOFile, "fno-file", "", "FNO export, appended after the CASH file")
}

func runFileLoad(job loader.Job) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader(fmt.Sprintf("Load %s", job.Name))
	PrintKV("File", loadFile)
	if loadFNOFile != "" && job.Name == loader.JobOpenHighLow {
		PrintKV("FNO file", loadFNOFile)
	}
	PrintKV("Date", a.cfg.Today().Format("2006-01-02"))
	PrintSeparator()

	res, err := a.runner.Run(context.Background(), job.Name, func(ctx context.Context) (interface{}, error) {
		return a.loader.Load(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", job.Name, err)
	}

	report := res.(*loader.Report)
	PrintKV("Run ID", report.RunID)
	PrintKV("Purged", report.Purged)
	PrintKV("Rows", report.Rows)
	PrintKV("Emitted", report.Emitted)
	PrintKV("Skipped", len(report.Skipped))
	PrintKV("Inserted", report.Inserted)
	PrintKV("Updated", report.Updated)
	PrintKV("Failed", report.Failed)
	for _, s := range report.Skipped {
		fmt.Printf("    line %d: %s %s\n", s.Line, s.Reason, s.Detail)
	}

	PrintSuccess(fmt.Sprintf("%s loaded successfully in %s", job.Name, report.Duration))
	return nil
}

func runTVLoad(cmd *cobra.Command, args []string) error {
	f, err := os.Open(loadFile)
	if err != nil {
		return err
	}
	defer f.Close()

	sigs, err := loader.DecodeTVSignals(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", loadFile, err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.intake.Ingest(context.Background(), sigs)
	if err != nil {
		return fmt.Errorf("store signals: %w", err)
	}

	PrintHeader("Load tv-signals")
	PrintKV("Received", report.Received)
	PrintKV("Inserted", report.Inserted)
	PrintKV("Existing", report.Existing)
	PrintKV("Rejected", len(report.Rejected))
	for _, r := range report.Rejected {
		fmt.Printf("    %s\n", r)
	}
	return nil
}
