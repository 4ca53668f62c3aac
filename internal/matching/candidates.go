package matching

import "github.com/rewired-gh/crossarb/internal/models"

// DefaultKeywordThreshold is the minimum Jaccard overlap for a candidate pair.
const DefaultKeywordThreshold = 0.2

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// KeywordOverlap is the Jaccard overlap of the keyword sets of two raw descriptions.
func KeywordOverlap(x, y string) float64 {
	return Jaccard(ExtractKeywords(NormalizeString(x)), ExtractKeywords(NormalizeString(y)))
}

// FilterCandidates compares every pair across a and b and keeps those whose
// keyword overlap reaches threshold. Output order is not significant.
func (n *Normalizer) FilterCandidates(a, b []models.Market, threshold float64) []models.CandidatePair {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	normB := make([]models.NormalizedText, len(b))
	for j := range b {
		normB[j] = n.Normalize(b[j].Description)
	}

	var out []models.CandidatePair
	for i := range a {
		ka := n.Normalize(a[i].Description).Keywords
		for j := range b {
			overlap := Jaccard(ka, normB[j].Keywords)
			if overlap >= threshold {
				out = append(out, models.CandidatePair{A: a[i], B: b[j], KeywordOverlap: overlap})
			}
		}
	}
	return out
}
