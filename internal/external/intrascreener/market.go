package intrascreener

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PanelIndices are the index panel entries in display order
var PanelIndices = []string{
	"NIFTY 50",
	"GIFT NIFTY",
	"NIFTY BANK",
	"NIFTY_MIDCAP_100",
	"NIFTY_SMLCAP_100",
	"NIFTY_FIN_SERVICE",
	"INDIA_VIX",
	"SENSEX",
}

// NotAvailable marks a panel value that could not be extracted
const NotAvailable = "N/A"

// IndexQuote is one index panel entry as displayed
type IndexQuote struct {
	Name    string
	Value   string
	Percent string
}

// Breadth is one index's advancing/declining counts
type Breadth struct {
	Advances int
	Declines int
}

// MarketData is one scrape of the market page
type MarketData struct {
	Indices []IndexQuote
	Breadth map[string]Breadth
}

// ParseIndexPanel reads value and percent of each panel entry.
// Entries missing from the markup are reported as N/A.
func ParseIndexPanel(html string) ([]IndexQuote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse index panel: %w", err)
	}

	entries := doc.Find("app-index-panel > div > div").First().ChildrenFiltered("span")

	quotes := make([]IndexQuote, len(PanelIndices))
	for i, name := range PanelIndices {
		quotes[i] = IndexQuote{Name: name, Value: NotAvailable, Percent: NotAvailable}
		if i >= entries.Length() {
			continue
		}

		parts := entries.Eq(i).ChildrenFiltered("span")
		if parts.Length() < 4 {
			continue
		}
		quotes[i].Value = strings.TrimSpace(parts.Eq(1).Text())
		quotes[i].Percent = strings.NewReplacer("(", "", ")", "", "%", "").Replace(strings.TrimSpace(parts.Eq(3).Text()))
	}
	return quotes, nil
}

// ParseSelectOptions returns the option labels of a <select>
func ParseSelectOptions(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse select: %w", err)
	}

	var options []string
	doc.Find("option").Each(func(_ int, s *goquery.Selection) {
		if label := strings.TrimSpace(s.Text()); label != "" {
			options = append(options, label)
		}
	})
	return options, nil
}

// ParseAdvanceDecline parses "advances | declines"
func ParseAdvanceDecline(text string) (Breadth, error) {
	adv, dec, ok := strings.Cut(text, "|")
	if !ok {
		return Breadth{}, fmt.Errorf("advance/decline %q: missing separator", text)
	}

	a, err := strconv.Atoi(strings.TrimSpace(adv))
	if err != nil {
		return Breadth{}, fmt.Errorf("advances %q: %w", adv, err)
	}
	d, err := strconv.Atoi(strings.TrimSpace(dec))
	if err != nil {
		return Breadth{}, fmt.Errorf("declines %q: %w", dec, err)
	}
	return Breadth{Advances: a, Declines: d}, nil
}

// ParseIndexValue parses a displayed value and percent with thousands separators.
// Either failing yields 0, 0.
func ParseIndexValue(value, percent string) (float64, float64) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(value), ",", ""), 64)
	if err != nil {
		return 0, 0
	}
	p, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(percent), ",", ""), 64)
	if err != nil {
		return 0, 0
	}
	return v, p
}
