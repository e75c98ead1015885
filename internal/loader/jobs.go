package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/internal/s1_normalize"
)

// Job names, also used in routes and screener log process names
const (
	JobOpenHighLow      = "open_high_low"
	JobIntradayAlerts   = "intraday_alerts"
	JobIndexPerformance = "index_performance"
)

// OpenHighLowJob replaces today's OHL rows with the CASH and FNO exports
func OpenHighLowJob(src Source) Job {
	return Job{
		Name:      JobOpenHighLow,
		Layout:    s1_normalize.LayoutOpenHighLow,
		PurgeType: contracts.ScreenerTypeOHL,
		Source:    src,
	}
}

// IntradayAlertsJob merges the alerts export into today's rows
func IntradayAlertsJob(src Source) Job {
	return Job{
		Name:   JobIntradayAlerts,
		Layout: s1_normalize.LayoutIntradayAlerts,
		Source: src,
	}
}

// LocalFile is an export already on disk
type LocalFile struct {
	Path      string
	StockType string
}

// FileSource reads local exports instead of driving the browser
func FileSource(files ...LocalFile) Source {
	return func(ctx context.Context) ([]intrascreener.File, error) {
		out := make([]intrascreener.File, 0, len(files))
		for _, f := range files {
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Path, err)
			}
			out = append(out, intrascreener.File{Name: filepath.Base(f.Path), StockType: f.StockType, Data: data})
		}
		return out, nil
	}
}
