// Package chunk splits raw document text into ordered, metadata-tagged
// segments ready for embedding. Two interchangeable strategies are provided:
// a fixed-size sliding window over words, and semantic accumulation along
// paragraph and sentence boundaries.
package chunk

import "github.com/atlasdocs/atlas-engine/engine/domain"

// Strategy names accepted by ForName.
const (
	StrategyFixedSize = "fixed_size"
	StrategySemantic  = "semantic"
)

// Default parameters per strategy.
const (
	DefaultWindowSize = 512
	DefaultOverlap    = 50
	DefaultMaxSize    = 1000
	DefaultMinSize    = 100
)

// Strategy turns document text into an ordered chunk sequence. Chunk is a
// pure function of its input and never blocks. The caller-supplied meta map
// is copied into every emitted chunk's Meta alongside the strategy fields.
type Strategy interface {
	Chunk(text string, meta map[string]any) []domain.Chunk
}

// ForName resolves a strategy name to an instance. Unknown names fall back
// to the fixed-size strategy with default parameters.
func ForName(name string) Strategy {
	switch name {
	case StrategySemantic:
		return &Semantic{MaxSize: DefaultMaxSize, MinSize: DefaultMinSize}
	case StrategyFixedSize:
		return &FixedSize{Size: DefaultWindowSize, Overlap: DefaultOverlap}
	default:
		return &FixedSize{Size: DefaultWindowSize, Overlap: DefaultOverlap}
	}
}

// cloneMeta copies caller metadata so chunks never alias the input map.
func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+4)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
