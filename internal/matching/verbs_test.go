package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionConflict(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"buy vs visit", "Will the US buy Greenland?", "Will people visit Greenland in 2026?", true},
		{"rise vs fall", "Will BTC rise in June?", "Will Bitcoin fall in June?", true},
		{"same verb", "Will Trump win the election?", "Trump to win 2028 election", false},
		{"both sides in one text", "Win or lose: Lakers game", "Will the Lakers lose?", false},
		{"no pair words", "Georgia Senate race", "GA Senate winner", false},
		{"substring is not a word", "Winner of the Senate race", "Who will lose the Senate race", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ActionConflict(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			rev, _ := ActionConflict(tt.b, tt.a)
			assert.Equal(t, tt.want, rev, "must be symmetric")
		})
	}
}
