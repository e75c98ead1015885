package s1_normalize

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column roles
const (
	RoleSymbol      = "symbol"
	RoleLTP         = "ltp"
	RoleMomentum    = "momentum"
	RoleOpen        = "open"
	RoleDeviation   = "deviation"
	RoleTodaysRange = "todays_range"
	RoleCategory    = "category"
	RoleAlerts      = "alerts"
	RoleLevel       = "level"
	RoleSector      = "sector"
)

// Layout names shipped in layouts.yaml
const (
	LayoutOpenHighLow    = "open_high_low"
	LayoutIntradayAlerts = "intraday_alerts"
)

const screenerFromCategory = "category"

//go:embed layouts.yaml
var defaultLayouts []byte

// Layout is a declarative column-role mapping for one export format
type Layout struct {
	Name          string                `yaml:"-"`
	ScreenerType  string                `yaml:"screener_type"`
	Screener      string                `yaml:"screener"`
	ScreenerFrom  string                `yaml:"screener_from"`
	StockType     string                `yaml:"stock_type"`
	TagSnapshot   string                `yaml:"tag_snapshot"`
	NameDelimiter string                `yaml:"name_delimiter"`
	Roles         map[string][][]string `yaml:"roles"`
	Required      []string              `yaml:"required"`
}

// LayoutSet is the decoded layouts file
type LayoutSet struct {
	Layouts map[string]*Layout `yaml:"layouts"`
}

// Get returns the named layout
func (s *LayoutSet) Get(name string) (*Layout, error) {
	l, ok := s.Layouts[name]
	if !ok {
		return nil, fmt.Errorf("layout %q not defined", name)
	}
	return l, nil
}

// DefaultLayouts decodes the embedded layouts
func DefaultLayouts() (*LayoutSet, error) {
	return ParseLayouts(defaultLayouts)
}

// LoadLayouts reads a layouts file, falling back to the embedded default when path is empty
func LoadLayouts(path string) (*LayoutSet, error) {
	if path == "" {
		return DefaultLayouts()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts: %w", err)
	}
	return ParseLayouts(data)
}

// ParseLayouts decodes YAML and rejects unknown fields
func ParseLayouts(data []byte) (*LayoutSet, error) {
	var set LayoutSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}

	for name, l := range set.Layouts {
		l.Name = name
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("layout %s: %w", name, err)
		}
	}
	return &set, nil
}

// Validate checks that the layout can produce a keyed Signal
func (l *Layout) Validate() error {
	if l.ScreenerType == "" {
		return fmt.Errorf("screener_type is required")
	}
	if l.Screener == "" && l.ScreenerFrom != screenerFromCategory {
		return fmt.Errorf("screener or screener_from: %s is required", screenerFromCategory)
	}
	if l.ScreenerFrom == screenerFromCategory && !l.requires(RoleCategory) {
		return fmt.Errorf("screener_from category needs a required category role")
	}
	if !l.requires(RoleSymbol) {
		return fmt.Errorf("symbol role must be required")
	}
	for _, role := range l.Required {
		alts, ok := l.Roles[role]
		if !ok || len(alts) == 0 {
			return fmt.Errorf("required role %q has no header keywords", role)
		}
		for _, alt := range alts {
			if len(alt) == 0 {
				return fmt.Errorf("role %q has an empty keyword list", role)
			}
		}
	}
	return nil
}

func (l *Layout) requires(role string) bool {
	for _, r := range l.Required {
		if r == role {
			return true
		}
	}
	return false
}

// normalizeHeader lowercases, strips the BOM and flattens newlines
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "\n", " ")
	return strings.ToLower(strings.TrimSpace(h))
}

// Resolve maps each role to a column index; roles without a matching header are absent.
// Missing required roles are returned in missing.
func (l *Layout) Resolve(headers []string) (index map[string]int, missing []string) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	index = make(map[string]int, len(l.Roles))
	for role, alts := range l.Roles {
		if i := findColumn(normalized, alts); i >= 0 {
			index[role] = i
		}
	}

	for _, role := range l.Required {
		if _, ok := index[role]; !ok {
			missing = append(missing, role)
		}
	}
	return index, missing
}

// findColumn returns the first header that contains all keywords of an alternative
func findColumn(headers []string, alts [][]string) int {
	for _, keywords := range alts {
		for i, h := range headers {
			if containsAll(h, keywords) {
				return i
			}
		}
	}
	return -1
}

func containsAll(header string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(header, strings.ToLower(k)) {
			return false
		}
	}
	return true
}
