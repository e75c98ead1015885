package s1_normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/sgloader/internal/contracts"
)

const nbsp = "\u00a0"

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// ParseNumeric extracts the first signed decimal in text.
// Empty text or text without a number yields def. Never panics.
func ParseNumeric(text string, def *float64) *float64 {
	text = strings.TrimSpace(strings.ReplaceAll(text, nbsp, " "))
	if text == "" {
		return def
	}

	match := numberPattern.FindString(text)
	if match == "" {
		return def
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return def
	}
	return &v
}

// ParseNumericOr is ParseNumeric with a non-nullable default
func ParseNumericOr(text string, def float64) float64 {
	return *ParseNumeric(text, &def)
}

// SplitPriceCell splits "<price>\n<change>(<pct>%)".
// Without a second line change and percentage are empty. A placeholder
// inside the parentheses (N/A) is returned as is and parses to the caller's default.
func SplitPriceCell(text string) (price, change, percentage string) {
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	price = strings.TrimSpace(lines[0])
	if len(lines) < 2 {
		return price, "", ""
	}

	rest := strings.TrimSpace(lines[1])
	open := strings.Index(rest, "(")
	if open < 0 {
		return price, rest, ""
	}

	change = strings.TrimSpace(rest[:open])
	inner := rest[open+1:]
	if end := strings.Index(inner, ")"); end >= 0 {
		inner = inner[:end]
	}
	percentage = strings.TrimSpace(strings.ReplaceAll(inner, "%", ""))
	return price, change, percentage
}

// SplitNameAndTags splits a "name<delimiter>tags" cell on the first delimiter
func SplitNameAndTags(text, delimiter string) (name, tags string) {
	if delimiter == "" {
		return text, ""
	}
	name, tags, found := strings.Cut(text, delimiter)
	if !found {
		return text, ""
	}
	return name, tags
}

// ClassifyTradeDirection is the only place trade direction is derived
func ClassifyTradeDirection(percentage float64) contracts.TradeType {
	if percentage < 0 {
		return contracts.TradeSell
	}
	return contracts.TradeBuy
}

// cleanCell normalizes NBSP to space and trims
func cleanCell(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, nbsp, " "))
}

// tagTokens normalizes a raw tag list into space-joined tokens
func tagTokens(raw string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(raw, nbsp, " ")), " ")
}
