package chunk

import (
	"regexp"
	"strings"

	"github.com/atlasdocs/atlas-engine/engine/domain"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Semantic accumulates sentences into chunks along paragraph boundaries.
// A chunk is flushed when appending the next sentence would exceed MaxSize
// characters, but only once the buffer has reached MinSize; below MinSize
// the buffer keeps growing past MaxSize rather than emit a fragment. With
// few, very long sentences this lets a buffer grow arbitrarily past
// MaxSize; that corner is kept as documented behavior.
type Semantic struct {
	MaxSize int
	MinSize int
}

// NewSemantic validates the accumulation bounds.
func NewSemantic(maxSize, minSize int) (*Semantic, error) {
	if maxSize <= 0 || minSize < 0 || minSize > maxSize {
		return nil, domain.ErrBadChunkParams
	}
	return &Semantic{MaxSize: maxSize, MinSize: minSize}, nil
}

// Chunk implements Strategy. Text splits on blank-line paragraph breaks
// first, then on sentence terminators. The trailing buffer at end-of-text
// is emitted only if it meets MinSize; shorter remainders are dropped.
func (s *Semantic) Chunk(text string, meta map[string]any) []domain.Chunk {
	paragraphs := strings.Split(text, "\n\n")

	var out []domain.Chunk
	var buf string

	for paraIdx, paragraph := range paragraphs {
		for _, sentence := range sentenceEnd.Split(paragraph, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}

			if len(buf)+len(sentence) > s.MaxSize {
				if len(buf) >= s.MinSize {
					out = append(out, s.emit(buf, len(out), paraIdx, true, meta))
					buf = sentence
				} else {
					buf += " " + sentence
				}
			} else if buf != "" {
				buf += " " + sentence
			} else {
				buf = sentence
			}
		}
	}

	if buf != "" && len(buf) >= s.MinSize {
		out = append(out, s.emit(buf, len(out), -1, false, meta))
	}
	return out
}

func (s *Semantic) emit(buf string, index, paraIdx int, midText bool, meta map[string]any) domain.Chunk {
	text := strings.TrimSpace(buf)

	m := cloneMeta(meta)
	m["chunk_index"] = index
	m["chunk_size"] = len(strings.Fields(text))
	m["semantic_boundary"] = true
	if midText {
		m["paragraph_start"] = paraIdx
	}

	return domain.Chunk{Text: text, Index: index, Meta: m}
}
