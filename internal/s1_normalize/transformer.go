package s1_normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wonny/sgloader/internal/contracts"
)

// RowContext carries per-run values that are not in the export itself
type RowContext struct {
	RunID     string
	RunTime   time.Time
	Date      time.Time
	StockType string // CASH / FNO; empty uses the layout default
}

// SkippedRow reports a row that did not produce a Signal
type SkippedRow struct {
	Line   int      `json:"line"`
	Reason error    `json:"-"`
	Detail string   `json:"detail"`
	Row    []string `json:"row,omitempty"`
}

// ReasonText is the JSON-friendly reason
func (s *SkippedRow) ReasonText() string {
	if s.Reason == nil {
		return ""
	}
	return s.Reason.Error()
}

func (s *SkippedRow) Error() string {
	return fmt.Sprintf("line %d: %v: %s", s.Line, s.Reason, s.Detail)
}

// Export is one downloaded CSV with its stock-type context
type Export struct {
	StockType string
	Headers   []string
	Rows      [][]string
}

// Transformer turns raw export rows into Signals using one Layout.
// ⭐ SSOT: the only RawScrapeRow → Signal mapping
type Transformer struct {
	layout   *Layout
	validate *validator.Validate
}

// NewTransformer creates a transformer for layout
func NewTransformer(layout *Layout) *Transformer {
	return &Transformer{
		layout:   layout,
		validate: validator.New(),
	}
}

// Layout returns the layout in use
func (t *Transformer) Layout() *Layout {
	return t.layout
}

// Transform maps one row. Rank is left at zero; TransformAll assigns it.
func (t *Transformer) Transform(row, headers []string, rc RowContext) (contracts.Signal, *SkippedRow) {
	index, missing := t.layout.Resolve(headers)
	if len(missing) > 0 {
		return contracts.Signal{}, &SkippedRow{
			Reason: contracts.ErrMissingColumn,
			Detail: strings.Join(missing, ","),
			Row:    row,
		}
	}
	return t.transform(row, index, rc)
}

// TransformAll maps every row of one export; ranks are 1-based over emitted rows
func (t *Transformer) TransformAll(headers []string, rows [][]string, rc RowContext) ([]contracts.Signal, []SkippedRow) {
	return t.TransformExports([]Export{{StockType: rc.StockType, Headers: headers, Rows: rows}}, rc)
}

// TransformExports maps several exports as one ranked batch in input order
func (t *Transformer) TransformExports(exports []Export, rc RowContext) ([]contracts.Signal, []SkippedRow) {
	var (
		signals []contracts.Signal
		skipped []SkippedRow
		line    int
	)

	for _, exp := range exports {
		ctx := rc
		if exp.StockType != "" {
			ctx.StockType = exp.StockType
		}

		index, missing := t.layout.Resolve(exp.Headers)
		for _, row := range exp.Rows {
			line++
			if len(missing) > 0 {
				skipped = append(skipped, SkippedRow{
					Line:   line,
					Reason: contracts.ErrMissingColumn,
					Detail: strings.Join(missing, ","),
					Row:    row,
				})
				continue
			}

			sig, skip := t.transform(row, index, ctx)
			if skip != nil {
				skip.Line = line
				skipped = append(skipped, *skip)
				continue
			}

			sig.ScreenerRank = len(signals) + 1
			signals = append(signals, sig)
		}
	}

	return signals, skipped
}

func (t *Transformer) transform(row []string, index map[string]int, rc RowContext) (contracts.Signal, *SkippedRow) {
	row = padRow(row, index)
	cell := func(role string) string {
		i, ok := index[role]
		if !ok {
			return ""
		}
		return row[i]
	}

	rawName, rawTags := SplitNameAndTags(cell(RoleSymbol), t.layout.NameDelimiter)
	segments := strings.Split(rawName, "\n")
	name := strings.ToUpper(cleanCell(segments[0]))
	if name == "" {
		return contracts.Signal{}, malformed(row, "empty stock name")
	}

	priceText, changeText, pctText := SplitPriceCell(cell(RoleLTP))
	percentage := ParseNumericOr(pctText, 0.0)

	category := cleanCell(cell(RoleCategory))
	screener := t.layout.Screener
	if t.layout.ScreenerFrom == screenerFromCategory {
		screener = category
	}
	if screener == "" {
		return contracts.Signal{}, malformed(row, "empty screener")
	}

	stockType := rc.StockType
	if stockType == "" {
		stockType = t.layout.StockType
	}

	sig := contracts.Signal{
		RunID:               rc.RunID,
		RunTime:             rc.RunTime,
		ScreenerDate:        rc.Date,
		ScreenerType:        t.layout.ScreenerType,
		Screener:            screener,
		StockName:           name,
		TradeType:           ClassifyTradeDirection(percentage),
		StockType:           stockType,
		Price:               ParseNumeric(priceText, nil),
		Change:              ParseNumeric(changeText, nil),
		Percentage:          percentage,
		Momentum:            ParseNumeric(cell(RoleMomentum), nil),
		Open:                ParseNumeric(cell(RoleOpen), nil),
		DeviationFromPivots: cleanCell(cell(RoleDeviation)),
		TodaysRange:         cleanCell(cell(RoleTodaysRange)),
		Category:            category,
		Sector:              cleanCell(cell(RoleSector)),
		Alerts:              cleanCell(cell(RoleAlerts)),
		Level:               ParseNumeric(cell(RoleLevel), nil),
		TagSnapshot:         strings.ReplaceAll(t.layout.TagSnapshot, "{category}", category),
		SignalCount:         1,
		IsActive:            true,
	}

	if tags := milestoneTags(rawTags, segments); tags != "" {
		// percentage == 0 goes to the bearish bucket
		if percentage > 0 {
			sig.BullishMilestoneTags = &tags
		} else {
			sig.BearishMilestoneTags = &tags
		}
	}

	if err := t.validate.Struct(&sig); err != nil {
		return contracts.Signal{}, malformed(row, err.Error())
	}
	return sig, nil
}

// milestoneTags prefers the delimiter split, then the newline segments [2:len-2]
func milestoneTags(rawTags string, segments []string) string {
	if tags := tagTokens(rawTags); tags != "" {
		return tags
	}
	if len(segments) > 4 {
		return tagTokens(strings.Join(segments[2:len(segments)-2], " "))
	}
	return ""
}

// padRow pads short rows with empty cells up to the largest resolved index
func padRow(row []string, index map[string]int) []string {
	need := 0
	for _, i := range index {
		if i+1 > need {
			need = i + 1
		}
	}
	if len(row) >= need {
		return row
	}
	padded := make([]string, need)
	copy(padded, row)
	return padded
}

func malformed(row []string, detail string) *SkippedRow {
	return &SkippedRow{Reason: contracts.ErrMalformed, Detail: detail, Row: row}
}

// ReadCSV reads a header row plus records; ragged rows are kept as is
func ReadCSV(r io.Reader) (headers []string, rows [][]string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err = reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty export: %w", contracts.ErrMalformed)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return headers, rows, nil
}
