package chunk

import (
	"strings"

	"github.com/atlasdocs/atlas-engine/engine/domain"
)

// FixedSize splits text into word windows of Size words with Overlap words
// shared between consecutive windows. Window i starts at word index
// i*(Size-Overlap); the final window may be shorter than Size. The overlap
// guarantees the last Overlap words of a window reappear as the first words
// of the next, preserving context continuity across the boundary.
type FixedSize struct {
	Size    int
	Overlap int
}

// NewFixedSize validates the window parameters. Overlap must be smaller
// than Size or the window would never advance.
func NewFixedSize(size, overlap int) (*FixedSize, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, domain.ErrBadChunkParams
	}
	return &FixedSize{Size: size, Overlap: overlap}, nil
}

// Chunk implements Strategy.
func (f *FixedSize) Chunk(text string, meta map[string]any) []domain.Chunk {
	words := strings.Fields(text)
	step := f.Size - f.Overlap

	var out []domain.Chunk
	for i := 0; i < len(words); i += step {
		end := i + f.Size
		if end > len(words) {
			end = len(words)
		}
		window := words[i:end]

		m := cloneMeta(meta)
		m["chunk_index"] = len(out)
		m["chunk_size"] = len(window) // actual word count, not the target
		m["start_word"] = i
		m["end_word"] = end - 1

		out = append(out, domain.Chunk{
			Text:  strings.Join(window, " "),
			Index: len(out),
			Meta:  m,
		})
	}
	return out
}
