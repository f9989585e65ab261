// Package embedding turns text into fixed-size vectors and compares them.
package embedding

import (
	"context"
	"math"
)

// Embedder embeds a batch of texts. The returned slice is index-aligned with
// the input.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of two vectors. A zero vector is
// treated as orthogonal to everything.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MeanCosine returns the mean cosine similarity of v against every vector in
// set, or 0 for an empty set.
func MeanCosine(v []float32, set [][]float32) float64 {
	if len(set) == 0 {
		return 0
	}
	var sum float64
	for _, s := range set {
		sum += Cosine(v, s)
	}
	return sum / float64(len(set))
}
