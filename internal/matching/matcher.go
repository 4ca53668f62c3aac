package matching

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
)

// DefaultSemanticThreshold is the minimum cosine similarity for a match.
const DefaultSemanticThreshold = 0.85

// Config tunes the Matcher.
type Config struct {
	KeywordThreshold  float64
	SemanticThreshold float64
	DateWindow        time.Duration
	DatePolicy        DatePolicy
	// Concurrency bounds parallel embedding batches during prefetch.
	Concurrency int
	BatchSize   int
	Now         func() time.Time
}

func (c *Config) setDefaults() {
	if c.KeywordThreshold <= 0 {
		c.KeywordThreshold = DefaultKeywordThreshold
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = DefaultSemanticThreshold
	}
	if c.DateWindow <= 0 {
		c.DateWindow = DefaultDateWindow
	}
	if c.DatePolicy == "" {
		c.DatePolicy = DatePolicyAllow
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Rejections counts why candidate pairs were dropped in one Match call.
type Rejections struct {
	Similarity int
	Date       int
	Action     int
}

// Matcher runs the keyword prefilter and semantic stage.
type Matcher struct {
	cfg        Config
	normalizer *Normalizer
	embedder   *CachedEmbedder
}

// NewMatcher creates a Matcher. The embedder is wrapped in an LRU cache of
// cacheSize entries; the normalizer cache shares the same bound.
func NewMatcher(embedder Embedder, cacheSize int, cfg Config) *Matcher {
	cfg.setDefaults()
	ce, ok := embedder.(*CachedEmbedder)
	if !ok {
		ce = NewCachedEmbedder(embedder, cacheSize)
	}
	return &Matcher{
		cfg:        cfg,
		normalizer: NewNormalizer(cacheSize),
		embedder:   ce,
	}
}

// ClearCaches drops every cached normal form and vector.
func (m *Matcher) ClearCaches() {
	m.normalizer.Clear()
	m.embedder.Clear()
}

// CacheSizes reports the normalization and embedding cache sizes.
func (m *Matcher) CacheSizes() (normalized, embeddings int) {
	return m.normalizer.CacheLen(), m.embedder.CacheLen()
}

// Candidates runs the keyword prefilter over two platforms' markets.
func (m *Matcher) Candidates(a, b []models.Market) []models.CandidatePair {
	return m.normalizer.FilterCandidates(a, b, m.cfg.KeywordThreshold)
}

// MatchMarkets runs both stages over two platforms' markets.
func (m *Matcher) MatchMarkets(ctx context.Context, a, b []models.Market) ([]models.EventMatch, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}
	candidates := m.Candidates(a, b)
	logger.Debug("Keyword prefilter: %d of %d pairs pass (threshold %.2f)",
		len(candidates), len(a)*len(b), m.cfg.KeywordThreshold)
	if len(candidates) == 0 {
		return nil, nil
	}
	return m.Match(ctx, candidates, m.cfg.SemanticThreshold)
}

// Match scores candidate pairs by embedding similarity and applies the date
// and action-verb heuristics. Any embedding failure aborts the call.
func (m *Matcher) Match(ctx context.Context, candidates []models.CandidatePair, threshold float64) ([]models.EventMatch, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make(map[string]struct{})
	for _, c := range candidates {
		texts[m.normalizer.Normalize(c.A.Description).Text()] = struct{}{}
		texts[m.normalizer.Normalize(c.B.Description).Text()] = struct{}{}
	}
	if err := m.prefetch(ctx, texts); err != nil {
		return nil, err
	}

	now := m.cfg.Now()
	var rej Rejections
	var matches []models.EventMatch

	for _, c := range candidates {
		normA := m.normalizer.Normalize(c.A.Description)
		normB := m.normalizer.Normalize(c.B.Description)

		vecs, err := m.embedder.Embed(ctx, []string{normA.Text(), normB.Text()})
		if err != nil {
			return nil, fmt.Errorf("failed to embed candidate pair: %w", err)
		}
		sim := Cosine(vecs[0], vecs[1])
		if sim < 0 {
			sim = 0
		} else if sim > 1 {
			sim = 1
		}
		if sim < threshold {
			rej.Similarity++
			continue
		}

		if !DatesCompatible(c.A, c.B, m.cfg.DateWindow, m.cfg.DatePolicy, now) {
			rej.Date++
			logger.Debug("Rejected %s/%s: close dates incompatible", c.A.MarketID, c.B.MarketID)
			continue
		}

		if conflict, pair := ActionConflict(c.A.Description, c.B.Description); conflict {
			rej.Action++
			logger.Debug("Rejected %s/%s: conflicting actions %s/%s", c.A.MarketID, c.B.MarketID, pair[0], pair[1])
			continue
		}

		matches = append(matches, models.EventMatch{
			A:          c.A,
			B:          c.B,
			Similarity: sim,
			NormA:      normA,
			NormB:      normB,
		})
	}

	logger.Debug("Semantic stage: %d matches from %d candidates (similarity %d, date %d, action %d rejected)",
		len(matches), len(candidates), rej.Similarity, rej.Date, rej.Action)
	return matches, nil
}

// prefetch fills the embedding cache for every text before pairs are scored.
func (m *Matcher) prefetch(ctx context.Context, texts map[string]struct{}) error {
	var missing []string
	for t := range texts {
		if _, ok := m.embedder.Lookup(t); !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for start := 0; start < len(missing); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		g.Go(func() error {
			_, err := m.embedder.Embed(gctx, batch)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to prefetch embeddings: %w", err)
	}
	return nil
}
