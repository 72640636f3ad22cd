package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultLocalDimension matches the sentence-transformer models the engine
// is typically paired with.
const DefaultLocalDimension = 384

// Local is a deterministic feature-hashing embedder. Unigrams and bigrams
// are hashed into a fixed number of buckets with a sign bit, then the
// vector is L2-normalized. It needs no model files and no network, which
// makes it the degradation target when the remote backend fails.
type Local struct {
	dim int
}

// NewLocal creates a local embedder of the given dimension.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &Local{dim: dim}
}

// Dimension implements Provider.
func (l *Local) Dimension() int { return l.dim }

// Embed implements Provider. The output is a pure function of the input.
func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *Local) embedOne(text string) []float32 {
	vec := make([]float32, l.dim)
	tokens := tokenize(text)

	for i, tok := range tokens {
		l.addFeature(vec, tok)
		if i+1 < len(tokens) {
			l.addFeature(vec, tok+" "+tokens[i+1])
		}
	}

	// L2 normalize so cosine similarity reduces to a dot product.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func (l *Local) addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(l.dim))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `?.,!;:'"()[]`)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
