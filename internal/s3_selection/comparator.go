package s3_selection

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wonny/sgloader/internal/contracts"
)

// NotFound is the level sentinel; it never yields a candidate
const NotFound = -1.0

// Branch markers
const (
	bullishCategory = "Low"
	bearishCategory = "High"
	qualifyingTag   = "PRB"
)

var exchangeSymbol = regexp.MustCompile(`^[A-Z]+:(.+)-[A-Z]+$`)

// LevelLookup returns a stock's level, or NotFound
type LevelLookup func(ctx context.Context, stockName string) (float64, error)

// PriceLookup returns quotes keyed by exchange-qualified symbol; missing symbols are absent
type PriceLookup func(ctx context.Context, stockNames []string) (map[string]contracts.Quote, error)

// NormalizeSymbol strips the exchange prefix and series suffix: NSE:SBIN-EQ → SBIN
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if m := exchangeSymbol.FindStringSubmatch(symbol); m != nil {
		return m[1]
	}
	return symbol
}

// FilterRows keeps the rows the trend's branch considers
func FilterRows(trend string, rows []contracts.Signal) []contracts.Signal {
	category := bearishCategory
	if contracts.IsBullish(trend) {
		category = bullishCategory
	}

	var out []contracts.Signal
	for _, row := range rows {
		if strings.Contains(row.Category, category) && row.HasMilestone(qualifyingTag) {
			out = append(out, row)
		}
	}
	return out
}

// SelectCandidates compares current prices against stored levels.
// ⭐ SSOT: the trend gate and level comparison live here only
//
// Bullish trend: Low rows, buy when ltp > level.
// Otherwise: High rows, sell when ltp < level.
func SelectCandidates(
	ctx context.Context,
	trend string,
	rows []contracts.Signal,
	levels LevelLookup,
	prices PriceLookup,
) (contracts.Candidates, error) {
	bullish := contracts.IsBullish(trend)
	result := contracts.Candidates{Trend: trend, Buy: []contracts.Candidate{}, Sell: []contracts.Candidate{}}

	names := uniqueNames(FilterRows(trend, rows))
	if len(names) == 0 {
		return result, nil
	}

	// A lookup error with partial quotes still evaluates what came back.
	quotes, err := prices(ctx, names)
	if err != nil && ctx.Err() != nil {
		return result, fmt.Errorf("fetch prices: %w", err)
	}
	if len(quotes) == 0 {
		if err != nil {
			return result, fmt.Errorf("fetch prices: %w: %w", contracts.ErrUpstreamUnavailable, err)
		}
		return result, fmt.Errorf("no quotes for %d symbols: %w", len(names), contracts.ErrUpstreamUnavailable)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		name := NormalizeSymbol(sym)
		if !wanted[name] {
			continue
		}

		level, err := levels(ctx, name)
		if err != nil {
			return result, fmt.Errorf("level for %s: %w", name, err)
		}
		if level == NotFound {
			continue
		}

		ltp := quotes[sym].LTP
		switch {
		case bullish && ltp > level:
			result.Buy = append(result.Buy, contracts.Candidate{Symbol: name, ToBuy: true, LTP: ltp, Level: level})
		case !bullish && ltp < level:
			result.Sell = append(result.Sell, contracts.Candidate{Symbol: name, ToSell: true, LTP: ltp, Level: level})
		}
	}

	return result, nil
}

func uniqueNames(rows []contracts.Signal) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		name := NormalizeSymbol(row.StockName)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
