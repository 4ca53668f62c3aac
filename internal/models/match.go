package models

import "errors"

// NormalizedText is the cached normal form of a market description.
type NormalizedText struct {
	Tokens   []string            `json:"tokens"`
	Keywords map[string]struct{} `json:"-"`
	Dates    map[string]struct{} `json:"-"`
}

// Text joins the tokens back into a single space-separated string.
func (n NormalizedText) Text() string {
	size := 0
	for _, t := range n.Tokens {
		size += len(t) + 1
	}
	b := make([]byte, 0, size)
	for i, t := range n.Tokens {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, t...)
	}
	return string(b)
}

// CandidatePair is a cross-platform pair that passed the keyword prefilter.
type CandidatePair struct {
	A              Market
	B              Market
	KeywordOverlap float64
}

// EventMatch is a candidate pair that passed semantic matching and every
// disqualifying heuristic.
type EventMatch struct {
	A          Market         `json:"market_a"`
	B          Market         `json:"market_b"`
	Similarity float64        `json:"similarity"`
	NormA      NormalizedText `json:"-"`
	NormB      NormalizedText `json:"-"`
}

// Validate checks that the match is well formed.
func (m *EventMatch) Validate() error {
	if err := m.A.Validate(); err != nil {
		return err
	}
	if err := m.B.Validate(); err != nil {
		return err
	}
	if m.A.Platform == m.B.Platform {
		return errors.New("matched markets must be on different platforms")
	}
	if m.Similarity < 0 || m.Similarity > 1 {
		return errors.New("similarity must be between 0.0 and 1.0")
	}
	return nil
}

// Spread is the absolute difference between the two yes prices.
func (m *EventMatch) Spread() float64 {
	d := m.A.Price - m.B.Price
	if d < 0 {
		return -d
	}
	return d
}
