package matching

import "strings"

// conflictPairs are words that describe mutually exclusive questions about the
// same subject, e.g. "will the US buy Greenland" vs "will people visit Greenland".
var conflictPairs = [][2]string{
	{"buy", "visit"},
	{"win", "lose"},
	{"pass", "fail"},
	{"increase", "decrease"},
	{"rise", "fall"},
	{"above", "below"},
	{"more", "less"},
	{"yes", "no"},
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(NormalizeString(text)) {
		set[w] = struct{}{}
	}
	return set
}

// ActionConflict reports whether a and b ask opposing questions: for some
// pair, a holds one side without the other and b holds the other side
// without the first.
func ActionConflict(a, b string) (bool, [2]string) {
	wa, wb := wordSet(a), wordSet(b)
	for _, p := range conflictPairs {
		_, a0 := wa[p[0]]
		_, a1 := wa[p[1]]
		_, b0 := wb[p[0]]
		_, b1 := wb[p[1]]
		if (a0 && !a1 && b1 && !b0) || (a1 && !a0 && b0 && !b1) {
			return true, p
		}
	}
	return false, [2]string{}
}
