package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/crossarb/internal/models"
)

// FilterMode selects whether keywords admit or drop a match.
type FilterMode string

const (
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
)

// EventFilter narrows matches to (or away from) topics by case-insensitive
// substring search over both descriptions.
type EventFilter struct {
	Enabled  bool
	Mode     FilterMode
	Keywords []string
}

// Presets are ready-made filters selectable by name.
var Presets = map[string]EventFilter{
	"senate":        {Enabled: true, Mode: FilterInclude, Keywords: []string{"senate", "senator"}},
	"presidential":  {Enabled: true, Mode: FilterInclude, Keywords: []string{"president", "presidential", "presidency", "potus"}},
	"politics":      {Enabled: true, Mode: FilterInclude, Keywords: []string{"senate", "house", "congress", "president", "presidential", "governor", "election", "republican", "democrat", "party"}},
	"sports_nfl":    {Enabled: true, Mode: FilterInclude, Keywords: []string{"nfl", "football", "super bowl", "chiefs", "patriots", "cowboys"}},
	"sports_nba":    {Enabled: true, Mode: FilterInclude, Keywords: []string{"nba", "basketball", "lakers", "celtics", "warriors", "championship"}},
	"crypto":        {Enabled: true, Mode: FilterInclude, Keywords: []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "cryptocurrency"}},
	"entertainment": {Enabled: true, Mode: FilterInclude, Keywords: []string{"movie", "actor", "actress", "film", "oscar", "emmy", "release"}},
	"trump":         {Enabled: true, Mode: FilterInclude, Keywords: []string{"trump", "donald trump", "djt"}},
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewEventFilter builds a filter, lowercasing and trimming keywords and
// dropping blanks.
func NewEventFilter(enabled bool, mode string, keywords []string) (EventFilter, error) {
	m := FilterMode(strings.ToLower(strings.TrimSpace(mode)))
	if m == "" {
		m = FilterInclude
	}
	if m != FilterInclude && m != FilterExclude {
		return EventFilter{}, fmt.Errorf("filter mode must be include or exclude, got %q", mode)
	}
	clean := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			clean = append(clean, k)
		}
	}
	return EventFilter{Enabled: enabled, Mode: m, Keywords: clean}, nil
}

// PresetFilter returns the named preset.
func PresetFilter(name string) (EventFilter, error) {
	f, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return EventFilter{}, fmt.Errorf("unknown filter preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	f.Keywords = append([]string(nil), f.Keywords...)
	return f, nil
}

// Active reports whether the filter changes anything.
func (f EventFilter) Active() bool {
	return f.Enabled && len(f.Keywords) > 0
}

// Allow reports whether a match between a and b passes the filter.
func (f EventFilter) Allow(a, b models.Market) bool {
	if !f.Active() {
		return true
	}
	combined := strings.ToLower(a.Description + " " + b.Description)
	found := false
	for _, k := range f.Keywords {
		if strings.Contains(combined, k) {
			found = true
			break
		}
	}
	if f.Mode == FilterExclude {
		return !found
	}
	return found
}

// Apply returns the matches that pass the filter.
func (f EventFilter) Apply(matches []models.EventMatch) []models.EventMatch {
	if !f.Active() {
		return matches
	}
	out := make([]models.EventMatch, 0, len(matches))
	for _, m := range matches {
		if f.Allow(m.A, m.B) {
			out = append(out, m)
		}
	}
	return out
}

// Summary describes the filter for logs and the dashboard.
func (f EventFilter) Summary() string {
	if !f.Enabled {
		return "No filters active (monitoring all events)"
	}
	if len(f.Keywords) == 0 {
		return "Filters enabled but no keywords specified"
	}
	verb := "Including only"
	if f.Mode == FilterExclude {
		verb = "Excluding"
	}
	shown := f.Keywords
	extra := ""
	if len(shown) > 5 {
		extra = fmt.Sprintf(", and %d more", len(shown)-5)
		shown = shown[:5]
	}
	quoted := make([]string, len(shown))
	for i, k := range shown {
		quoted[i] = "'" + k + "'"
	}
	return verb + ": " + strings.Join(quoted, ", ") + extra
}
