package graph

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/factgraph/factgraph/internal/cache"
	"github.com/factgraph/factgraph/internal/llm"
)

// Similarity measures how likely two surface forms name the same
// real-world entity, in [0,1].
type Similarity interface {
	Score(ctx context.Context, a, b string) (float64, error)
}

// EmbeddingSimilarity is the primary measure: cosine distance between
// name embeddings from the judgment-source provider. Vectors are cached so
// repeated dedup passes over the same names cost one call. When the
// provider has no embedding endpoint it falls back to the lexical measure.
type EmbeddingSimilarity struct {
	provider llm.Provider
	vectors  cache.Cache
	fallback LexicalSimilarity
}

// NewEmbeddingSimilarity creates the embedding-backed measure. vectors may
// be nil to disable caching.
func NewEmbeddingSimilarity(provider llm.Provider, vectors cache.Cache) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{provider: provider, vectors: vectors}
}

func (s *EmbeddingSimilarity) Score(ctx context.Context, a, b string) (float64, error) {
	na, nb := normalizeName(a), normalizeName(b)
	if na == nb {
		return 1.0, nil
	}

	va, err := s.vector(ctx, na)
	if err != nil {
		if errors.Is(err, llm.ErrEmbeddingsUnsupported) {
			return s.fallback.Score(ctx, a, b)
		}
		return 0, err
	}
	vb, err := s.vector(ctx, nb)
	if err != nil {
		if errors.Is(err, llm.ErrEmbeddingsUnsupported) {
			return s.fallback.Score(ctx, a, b)
		}
		return 0, err
	}

	return cosine(va, vb), nil
}

func (s *EmbeddingSimilarity) vector(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(text)
	if s.vectors != nil {
		if data, ok := s.vectors.Get(key); ok {
			var v []float32
			if json.Unmarshal(data, &v) == nil {
				return v, nil
			}
		}
	}

	vecs, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errors.New("embedding provider returned wrong vector count")
	}

	if s.vectors != nil {
		if data, err := json.Marshal(vecs[0]); err == nil {
			_ = s.vectors.Set(key, data, 7*24*time.Hour)
		}
	}
	return vecs[0], nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// LexicalSimilarity is the offline measure: token overlap between
// normalized names, weighted toward the smaller set so "Stripe" scores
// high against "Stripe API".
type LexicalSimilarity struct{}

func (LexicalSimilarity) Score(_ context.Context, a, b string) (float64, error) {
	na, nb := normalizeName(a), normalizeName(b)
	if na == nb {
		return 1.0, nil
	}

	ta, tb := tokens(na), tokens(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}

	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	shared := 0
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		if setA[t] && !setB[t] {
			shared++
		}
		setB[t] = true
	}

	union := len(setA) + len(setB) - shared
	jaccard := float64(shared) / float64(union)

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	containment := float64(shared) / float64(smaller)

	// Containment dominates: one name being a subset of the other is the
	// common duplicate shape in correspondence.
	return 0.3*jaccard + 0.7*containment, nil
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokens(normalized string) []string {
	return strings.Fields(normalized)
}
