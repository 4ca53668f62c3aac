package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/crossarb/internal/models"
)

var fixedNow = time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseCloseTime(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2026-11-03T00:00:00Z", day(2026, time.November, 3), true},
		{"2026-11-03T05:00:00-05:00", time.Date(2026, time.November, 3, 10, 0, 0, 0, time.UTC), true},
		{"2026-11-03", day(2026, time.November, 3), true},
		{"", time.Time{}, false},
		{"N/A", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCloseTime(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if ok {
			assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
		}
	}
}

func TestInferDate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   time.Time
		wantOK bool
	}{
		{"before month with year", "Will the US buy Greenland before July 2026?", day(2026, time.July, 1), true},
		{"before month rolls forward", "Will X resign before March?", day(2027, time.March, 1), true},
		{"before month this year", "Will X resign before September?", day(2026, time.September, 1), true},
		{"ticker year then month", "KXGREENLAND-26NOV", day(2026, time.November, 30), true},
		{"month then two digit year", "PRES-NOV28", day(2028, time.November, 30), true},
		{"bare year", "Who will win the 2028 presidential election?", day(2028, time.December, 31), true},
		{"bare year too early", "Recession in 2025?", time.Time{}, false},
		{"nothing", "Will it rain tomorrow?", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferDate(tt.text, fixedNow)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestDatesCompatible(t *testing.T) {
	window := DefaultDateWindow
	mk := func(id, desc, close string) models.Market {
		return models.Market{MarketID: id, Description: desc, CloseTime: close}
	}

	tests := []struct {
		name   string
		a, b   models.Market
		policy DatePolicy
		want   bool
	}{
		{
			name:   "within window",
			a:      mk("a", "Senate", "2026-11-03T00:00:00Z"),
			b:      mk("b", "Senate", "2026-11-10"),
			policy: DatePolicyAllow,
			want:   true,
		},
		{
			name:   "exactly fourteen days",
			a:      mk("a", "Senate", "2026-11-03"),
			b:      mk("b", "Senate", "2026-11-17"),
			policy: DatePolicyAllow,
			want:   true,
		},
		{
			name:   "outside window",
			a:      mk("a", "Senate", "2026-11-03"),
			b:      mk("b", "Senate", "2026-12-31"),
			policy: DatePolicyAllow,
			want:   false,
		},
		{
			name:   "fallback from description",
			a:      mk("a", "Winner of the 2028 election", ""),
			b:      mk("b", "Election", "2028-12-25"),
			policy: DatePolicyReject,
			want:   true,
		},
		{
			name:   "unknown date allowed",
			a:      mk("a", "Will it rain?", ""),
			b:      mk("b", "Rain", "2026-11-10"),
			policy: DatePolicyAllow,
			want:   true,
		},
		{
			name:   "unknown date rejected",
			a:      mk("a", "Will it rain?", ""),
			b:      mk("b", "Rain", "2026-11-10"),
			policy: DatePolicyReject,
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DatesCompatible(tt.a, tt.b, window, tt.policy, fixedNow))
		})
	}
}

func TestParseDatePolicy(t *testing.T) {
	p, err := ParseDatePolicy("")
	assert.NoError(t, err)
	assert.Equal(t, DatePolicyAllow, p)

	p, err = ParseDatePolicy("REJECT")
	assert.NoError(t, err)
	assert.Equal(t, DatePolicyReject, p)

	_, err = ParseDatePolicy("maybe")
	assert.Error(t, err)
}
