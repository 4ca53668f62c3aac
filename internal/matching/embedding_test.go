package matching

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns a constant vector and records every text it embeds.
type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vec
	}
	return out, nil
}

func (c *countingEmbedder) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	vecs, err := e.Embed(context.Background(), []string{
		"georgia senate race democrats",
		"georgia senate race democrats",
		"lakers win national basketball association championship",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], DefaultDimensions)

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[1]), 1e-5)
	assert.Less(t, Cosine(vecs[0], vecs[2]), 0.5)
}

func TestHashEmbedderSimilarTexts(t *testing.T) {
	e := NewHashEmbedder(512)
	vecs, err := e.Embed(context.Background(), []string{
		"will donald trump win the 2028 presidential election",
		"donald trump win 2028 presidential election",
		"will the federal reserve cut interest rates in march",
	})
	require.NoError(t, err)
	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
}

func TestHashEmbedderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestCosine(t *testing.T) {
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 1.0, Cosine([]float32{2, 2}, []float32{1, 1}), 1e-9)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 0}}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls(), "duplicates are embedded once")

	vecs, err := c.Embed(ctx, []string{"b", "a", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 3, inner.calls(), "only the new text reaches the provider")
	assert.Equal(t, 3, c.CacheLen())

	c.Clear()
	assert.Equal(t, 0, c.CacheLen())
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("backend down")}
	c := NewCachedEmbedder(inner, 10)
	_, err := c.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Equal(t, 0, c.CacheLen())
}

func TestHTTPEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		// reversed order to check index handling
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, item{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewHTTPEmbedder(HTTPEmbedderConfig{
		Endpoint:  server.URL,
		Model:     "test-model",
		APIKey:    "secret",
		BatchSize: 2,
	})
	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestHTTPEmbedderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewHTTPEmbedder(HTTPEmbedderConfig{Endpoint: server.URL})
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Contains(t, err.Error(), "503")
}
