package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sgloader/internal/contracts"
)

var candidatesDate string

// candidatesCmd runs the OHL comparator
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Select Open-High-Low breakout candidates",
	Long: `Runs the Open-High-Low comparator for a trading day.

Gates the day's OHL rows on the breadth trend, keeps PRB-tagged rows of the
matching category and compares live quotes against each stock's level.

Example:
  go run ./cmd/sgloader candidates
  go run ./cmd/sgloader candidates --date 2025-03-10`,
	RunE: runCandidates,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.Flags().StringVar(&candidatesDate, "date", "", "trading date YYYY-MM-DD (default today)")
}

func runCandidates(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date := a.cfg.Today()
	if candidatesDate != "" {
		if date, err = time.ParseInLocation("2006-01-02", candidatesDate, a.cfg.Market.Location); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	result, err := a.selector.Run(context.Background(), date)
	if err != nil {
		return err
	}

	PrintHeader("OHL candidates")
	PrintKV("Date", date.Format("2006-01-02"))
	PrintKV("Trend", result.Trend)
	PrintSeparator()
	printCandidates("BUY", result.Buy)
	printCandidates("SELL", result.Sell)
	return nil
}

func printCandidates(side string, list []contracts.Candidate) {
	fmt.Printf("%s (%d)\n", side, len(list))
	for _, c := range list {
		fmt.Printf("  %-14s ltp %10.2f  level %10.2f\n", c.Symbol, c.LTP, c.Level)
	}
}
