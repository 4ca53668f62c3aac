package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/crossarb/internal/models"
)

// DatePolicy decides what happens when a market's close date cannot be determined.
type DatePolicy string

const (
	// DatePolicyAllow keeps the pair when either date is unknown.
	DatePolicyAllow DatePolicy = "allow"
	// DatePolicyReject drops the pair when either date is unknown.
	DatePolicyReject DatePolicy = "reject"
)

// ParseDatePolicy validates a policy name. Empty selects DatePolicyAllow.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DatePolicyAllow:
		return DatePolicyAllow, nil
	case DatePolicyReject:
		return DatePolicyReject, nil
	}
	return "", fmt.Errorf("unknown unparseable date policy %q", s)
}

// DefaultDateWindow is the maximum close-date distance for a match.
const DefaultDateWindow = 14 * 24 * time.Hour

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

const monthAlt = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	beforeMonthRe = regexp.MustCompile(`(?i)\bbefore\s+(` + monthAlt + `)\.?(?:\s+\d{1,2}(?:st|nd|rd|th)?)?,?(?:\s+((?:19|20)\d{2}))?\b`)
	monthYearRe   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[-']?(\d{2})\b`)
	yearMonthRe   = regexp.MustCompile(`(?i)\b(\d{2})(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\b`)
	bareYearRe    = regexp.MustCompile(`\b(20\d{2})\b`)
)

// ParseCloseTime parses an ISO-8601 close time.
func ParseCloseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func monthFrom(s string) (time.Month, bool) {
	if len(s) < 3 {
		return 0, false
	}
	m, ok := months[strings.ToLower(s[:3])]
	return m, ok
}

func endOfMonth(year int, m time.Month) time.Time {
	return time.Date(year, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// InferDate extracts an approximate resolution date from free text. It
// recognises "before <Month> [<Year>]" (first of that month), month plus
// two-digit year tokens such as "NOV26", "nov-26" or "25DEC" (end of that month) and
// bare years from 2026 on (December 31).
func InferDate(text string, now time.Time) (time.Time, bool) {
	if m := beforeMonthRe.FindStringSubmatch(text); m != nil {
		if month, ok := monthFrom(m[1]); ok {
			year := now.Year()
			if m[2] != "" {
				year, _ = strconv.Atoi(m[2])
			}
			t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			if m[2] == "" && t.Before(now) {
				t = t.AddDate(1, 0, 0)
			}
			return t, true
		}
	}
	if m := monthYearRe.FindStringSubmatch(text); m != nil {
		if month, ok := monthFrom(m[1]); ok {
			yy, _ := strconv.Atoi(m[2])
			return endOfMonth(2000+yy, month), true
		}
	}
	if m := yearMonthRe.FindStringSubmatch(text); m != nil {
		if month, ok := monthFrom(m[2]); ok {
			yy, _ := strconv.Atoi(m[1])
			return endOfMonth(2000+yy, month), true
		}
	}
	for _, m := range bareYearRe.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		if year >= 2026 {
			return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// MarketDate returns the close date of m: the parsed close time when present,
// otherwise a date inferred from the description and market ID.
func MarketDate(m models.Market, now time.Time) (time.Time, bool) {
	if t, ok := ParseCloseTime(m.CloseTime); ok {
		return t, true
	}
	if t, ok := InferDate(m.Description, now); ok {
		return t, true
	}
	return InferDate(m.MarketID, now)
}

// DatesCompatible reports whether a and b close within window of each other.
// When either date is unknown the policy decides.
func DatesCompatible(a, b models.Market, window time.Duration, policy DatePolicy, now time.Time) bool {
	ta, okA := MarketDate(a, now)
	tb, okB := MarketDate(b, now)
	if !okA || !okB {
		return policy != DatePolicyReject
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff.Hours() / 24)
	return time.Duration(days)*24*time.Hour <= window
}
