package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hashing is an offline Embedder that projects the lowercased word tokens of a
// text into a fixed number of buckets (feature hashing). Texts sharing words
// have a positive cosine similarity; the empty text embeds to the zero vector.
type Hashing struct {
	Dim int
}

// NewHashing constructs a feature-hashing embedder.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

// EmbedDocuments embeds documents deterministically.
func (h *Hashing) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *Hashing) embed(text string) []float32 {
	v := make([]float32, h.Dim)
	for _, tok := range tokenize(text) {
		sum := highwayhash.Sum64([]byte(tok), hashKey)
		idx := sum % uint64(h.Dim)
		// the top bit picks the sign so collisions partly cancel out
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return v
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
