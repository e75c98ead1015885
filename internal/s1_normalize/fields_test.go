package s1_normalize

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/sgloader/internal/contracts"
)

func TestParseNumeric(t *testing.T) {
	def := 7.0
	tests := []struct {
		name string
		text string
		def  *float64
		want *float64
	}{
		{"plain", "650.00", nil, contracts.Float(650)},
		{"negative", "-1.25", nil, contracts.Float(-1.25)},
		{"nbsp padded", "\u00a0 12.5\u00a0", nil, contracts.Float(12.5)},
		{"first number wins", "R1 245.5 / 250", nil, contracts.Float(1)},
		{"percent sign", "1.56%", nil, contracts.Float(1.56)},
		{"trailing dot", "42.", nil, contracts.Float(42)},
		{"empty nil default", "", nil, nil},
		{"empty with default", "   ", &def, &def},
		{"placeholder", "N/A", &def, &def},
		{"placeholder nil", "--", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumeric(tt.text, tt.def)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseNumericOr(t *testing.T) {
	assert.Equal(t, 0.0, ParseNumericOr("N/A", 0.0))
	assert.Equal(t, -3.5, ParseNumericOr("(-3.5%)", 0.0))
}

func TestSplitPriceCell(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantPrice  string
		wantChange string
		wantPct    string
	}{
		{"full cell", "650.00\n10.00(1.56%)", "650.00", "10.00", "1.56"},
		{"no percent sign", "650.00\n10.00(1.56)", "650.00", "10.00", "1.56"},
		{"negative", "98.10\n-2.40(-2.39%)", "98.10", "-2.40", "-2.39"},
		{"spaced", " 120.5 \n 1.5 ( 1.26% ) ", "120.5", "1.5", "1.26"},
		{"placeholder", "650.00\n0.00(N/A)", "650.00", "0.00", "N/A"},
		{"single line", "650.00", "650.00", "", ""},
		{"no parentheses", "650.00\n10.00", "650.00", "10.00", ""},
		{"empty", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c, pct := SplitPriceCell(tt.text)
			assert.Equal(t, tt.wantPrice, p)
			assert.Equal(t, tt.wantChange, c)
			assert.Equal(t, tt.wantPct, pct)
		})
	}
}

func TestSplitPriceCell_RoundTrip(t *testing.T) {
	cases := [][3]float64{
		{650, 10, 1.56},
		{98.1, -2.4, -2.39},
		{1, 0, 0},
		{24510.75, 312.2, 1.29},
	}

	for _, c := range cases {
		cell := fmt.Sprintf("%.2f\n%.2f(%.2f%%)", c[0], c[1], c[2])
		p, ch, pct := SplitPriceCell(cell)

		rebuilt := fmt.Sprintf("%s\n%s(%s%%)", p, ch, pct)
		assert.Equal(t, cell, rebuilt)

		assert.InDelta(t, c[0], ParseNumericOr(p, math.NaN()), 1e-9)
		assert.InDelta(t, c[1], ParseNumericOr(ch, math.NaN()), 1e-9)
		assert.InDelta(t, c[2], ParseNumericOr(pct, math.NaN()), 1e-9)
	}
}

func TestSplitNameAndTags(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		delimiter string
		wantName  string
		wantTags  string
	}{
		{"delimited", "SBIN\u00a0\u00a0PRB-UP R1", "\u00a0\u00a0", "SBIN", "PRB-UP R1"},
		{"first occurrence only", "A\u00a0\u00a0B\u00a0\u00a0C", "\u00a0\u00a0", "A", "B\u00a0\u00a0C"},
		{"absent", "SBIN", "\u00a0\u00a0", "SBIN", ""},
		{"empty delimiter", "SBIN\u00a0\u00a0X", "", "SBIN\u00a0\u00a0X", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, tags := SplitNameAndTags(tt.text, tt.delimiter)
			assert.Equal(t, tt.wantName, n)
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestClassifyTradeDirection(t *testing.T) {
	tests := []struct {
		pct  float64
		want contracts.TradeType
	}{
		{-0.01, contracts.TradeSell},
		{-100, contracts.TradeSell},
		{math.Inf(-1), contracts.TradeSell},
		{0, contracts.TradeBuy},
		{math.Copysign(0, -1), contracts.TradeBuy},
		{0.01, contracts.TradeBuy},
		{math.MaxFloat64, contracts.TradeBuy},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pct), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTradeDirection(tt.pct))
		})
	}
}
