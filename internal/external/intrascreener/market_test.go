package intrascreener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const panelFixture = `
<app-index-panel>
  <div>
    <div>
      <span><span>NIFTY 50</span><span>22,514.65</span><span>+120.2</span><span>(0.54%)</span></span>
      <span><span>GIFT NIFTY</span><span>22,560.00</span><span>+98.0</span><span>(0.44%)</span></span>
      <span><span>NIFTY BANK</span><span>48,010.10</span><span>-88.4</span><span>(-0.18%)</span></span>
      <span><span>MIDCAP</span><span>broken</span></span>
    </div>
    <div><div><button>FNO</button><button>CASH</button></div></div>
  </div>
</app-index-panel>`

func TestParseIndexPanel(t *testing.T) {
	quotes, err := ParseIndexPanel(panelFixture)
	require.NoError(t, err)
	require.Len(t, quotes, len(PanelIndices))

	assert.Equal(t, IndexQuote{Name: "NIFTY 50", Value: "22,514.65", Percent: "0.54"}, quotes[0])
	assert.Equal(t, IndexQuote{Name: "NIFTY BANK", Value: "48,010.10", Percent: "-0.18"}, quotes[2])

	// malformed and absent entries
	assert.Equal(t, NotAvailable, quotes[3].Value)
	assert.Equal(t, NotAvailable, quotes[7].Percent)
	assert.Equal(t, "SENSEX", quotes[7].Name)
}

func TestParseSelectOptions(t *testing.T) {
	html := `<select><option>NIFTY 50</option><option> NIFTY 500 </option><option></option><option>FNO</option></select>`
	options, err := ParseSelectOptions(html)
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTY 50", "NIFTY 500", "FNO"}, options)
}

func TestParseAdvanceDecline(t *testing.T) {
	tests := []struct {
		text    string
		want    Breadth
		wantErr bool
	}{
		{"312 | 188", Breadth{312, 188}, false},
		{"0|0", Breadth{0, 0}, false},
		{" 45 |  5 ", Breadth{45, 5}, false},
		{"312", Breadth{}, true},
		{"a | b", Breadth{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseAdvanceDecline(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIndexValue(t *testing.T) {
	v, p := ParseIndexValue("22,514.65", "0.54")
	assert.Equal(t, 22514.65, v)
	assert.Equal(t, 0.54, p)

	v, p = ParseIndexValue("N/A", "0.54")
	assert.Zero(t, v)
	assert.Zero(t, p)

	v, p = ParseIndexValue("100", "N/A")
	assert.Zero(t, v)
	assert.Zero(t, p)
}
