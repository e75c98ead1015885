package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sgloader/internal/contracts"
)

var (
	purgeDate string
	purgeType string
)

// purgeCmd deletes one day's signals of one screener type
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete a day's signals of one screener type",
	Long: `Deletes every signal of the given screener type on the given date.

Example:
  go run ./cmd/sgloader purge --type OPEN_HIGH_LOW
  go run ./cmd/sgloader purge --date 2025-03-10 --type BEST_INTRADAY_STOCKS`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVar(&purgeDate, "date", "", "trading date YYYY-MM-DD (default today)")
	purgeCmd.Flags().StringVar(&purgeType, "type", contracts.ScreenerTypeOHL, "screener type")
}

func runPurge(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date := a.cfg.Today()
	if purgeDate != "" {
		if date, err = time.ParseInLocation("2006-01-02", purgeDate, a.cfg.Market.Location); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	screenerType := strings.ToUpper(purgeType)
	n, err := a.signals.DeleteByDateAndType(context.Background(), date, screenerType)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Deleted %d %s signal(s) for %s", n, screenerType, date.Format("2006-01-02")))
	return nil
}
