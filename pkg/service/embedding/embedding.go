package embedding

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 768

// DefaultBatchSize limits how many texts are sent to a backend in one call.
const DefaultBatchSize = 32

// Warmer is implemented by vectorizers with an expensive one-time load.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Warmup runs the one-time load of v if it has one.
func Warmup(ctx context.Context, v interfaces.Vectorizer) error {
	if w, ok := v.(Warmer); ok {
		return w.Warmup(ctx)
	}
	return nil
}

func chunks(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var result [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		result = append(result, [2]int{start, end})
	}
	return result
}
