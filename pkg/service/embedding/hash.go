package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
)

// HashModelName is reported by the local feature hashing vectorizer.
const HashModelName = "local-feature-hash"

// Seeds separating word buckets from trigram buckets: FNV-1a 32 of "word" and "trigram".
const (
	wordSalt    uint32 = 0x6a98e9fd
	trigramSalt uint32 = 0x7c8816a9
)

// Hash is a deterministic local vectorizer. Word tokens and character
// trigrams are hashed into dimension buckets with FNV-1a, signed by a second
// hash bit, and the result is L2 normalized. It needs no model and no
// warmup, so it stands in for a local embedding model in offline setups.
type Hash struct {
	dimension int
}

// NewHash creates a hash vectorizer producing vectors of the given dimension.
func NewHash(dimension int) (*Hash, error) {
	if dimension <= 0 {
		return nil, goerr.New("dimension must be positive", goerr.V("dimension", dimension))
	}
	return &Hash{dimension: dimension}, nil
}

func (h *Hash) Dimension() int { return h.dimension }

func (h *Hash) Model() string { return HashModelName }

func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "embedding canceled")
		}
		result[i] = h.vector(text)
	}
	return result, nil
}

func (h *Hash) vector(text string) []float32 {
	acc := make([]float64, h.dimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h.add(acc, wordSalt, w, 1.0)

		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(acc, trigramSalt, string(padded[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	result := make([]float32, h.dimension)
	if norm == 0 {
		return result
	}
	for i, v := range acc {
		result[i] = float32(v / norm)
	}
	return result
}

func (h *Hash) add(acc []float64, salt uint32, token string, weight float64) {
	hasher := fnv.New64a()
	var seed [4]byte
	seed[0], seed[1], seed[2], seed[3] = byte(salt), byte(salt>>8), byte(salt>>16), byte(salt>>24)
	_, _ = hasher.Write(seed[:])
	_, _ = hasher.Write([]byte(token))
	sum := hasher.Sum64()

	idx := int(sum % uint64(len(acc)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}
