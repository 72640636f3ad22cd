package chunk

import (
	"strings"
	"testing"
)

func TestFixedSize_WindowsAndOverlap(t *testing.T) {
	f, err := NewFixedSize(5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "The cat sat on the mat. The dog ran in the park."
	chunks := f.Chunk(text, nil)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantStarts := []int{0, 4, 8}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: index = %d", i, c.Index)
		}
		if got := c.Meta["start_word"].(int); got != wantStarts[i] {
			t.Errorf("chunk %d: start_word = %d, want %d", i, got, wantStarts[i])
		}
		words := strings.Fields(c.Text)
		if len(words) > 5 {
			t.Errorf("chunk %d: %d words, want <= 5", i, len(words))
		}
		if got := c.Meta["chunk_size"].(int); got != len(words) {
			t.Errorf("chunk %d: chunk_size = %d, actual words %d", i, got, len(words))
		}
	}

	// The overlap word at each boundary repeats across consecutive chunks.
	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		if cur[len(cur)-1] != next[0] {
			t.Errorf("boundary %d: %q does not reappear, next starts with %q", i, cur[len(cur)-1], next[0])
		}
	}

	// Final window may be shorter than the target size.
	if last := strings.Fields(chunks[2].Text); len(last) >= 5 {
		t.Errorf("final chunk has %d words, expected a short remainder", len(last))
	}
}

func TestFixedSize_EmptyText(t *testing.T) {
	f := &FixedSize{Size: 5, Overlap: 1}
	if chunks := f.Chunk("   ", nil); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank text, got %d", len(chunks))
	}
}

func TestFixedSize_BadParams(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0}, {5, 5}, {5, 6}, {-1, 0}, {5, -1},
	}
	for _, c := range cases {
		if _, err := NewFixedSize(c.size, c.overlap); err == nil {
			t.Errorf("NewFixedSize(%d, %d): expected error", c.size, c.overlap)
		}
	}
}

func TestFixedSize_MetadataPassthrough(t *testing.T) {
	f := &FixedSize{Size: 3, Overlap: 1}
	chunks := f.Chunk("one two three four five", map[string]any{"source": "cv.pdf"})
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if c.Meta["source"] != "cv.pdf" {
			t.Errorf("chunk %d: caller metadata dropped", i)
		}
	}
}

func TestSemantic_MinSizeNeverViolatedMidText(t *testing.T) {
	s, err := NewSemantic(60, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "Go ships a garbage collector tuned for low latency. " +
		"Goroutines multiplex onto operating system threads cheaply. " +
		"Channels let goroutines exchange values without shared memory. " +
		"The race detector finds unsynchronized access at run time."

	chunks := s.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) < 25 {
			t.Errorf("chunk %d is %d chars, below min size", i, len(c.Text))
		}
	}
}

func TestSemantic_ShortTrailingRemainderDropped(t *testing.T) {
	s := &Semantic{MaxSize: 50, MinSize: 30}

	// The final sentence alone is far below MinSize and must be dropped.
	text := "This opening sentence is comfortably long enough to emit. Tiny tail."
	chunks := s.Chunk(text, nil)

	for i, c := range chunks {
		if strings.Contains(c.Text, "Tiny tail") && len(c.Text) < 30 {
			t.Errorf("chunk %d: short trailing remainder was emitted: %q", i, c.Text)
		}
	}
}

func TestSemantic_BufferMayExceedMaxToReachMin(t *testing.T) {
	// MinSize close to MaxSize forces accumulation past MaxSize.
	s := &Semantic{MaxSize: 40, MinSize: 35}
	text := "Alpha beta gamma delta epsilon zeta. Eta theta iota kappa lambda mu. Nu xi omicron pi rho sigma."

	chunks := s.Chunk(text, nil)
	for _, c := range chunks {
		if len(c.Text) < 35 {
			t.Errorf("emitted chunk below min size: %q", c.Text)
		}
	}
}

func TestSemantic_ParagraphMetadata(t *testing.T) {
	s := &Semantic{MaxSize: 40, MinSize: 10}
	text := "First paragraph sentence one here. Second sentence follows now.\n\nSecond paragraph starts fresh here."

	chunks := s.Chunk(text, nil)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if c.Meta["semantic_boundary"] != true {
			t.Errorf("chunk %d missing semantic_boundary", i)
		}
		if got := c.Meta["chunk_size"].(int); got != len(strings.Fields(c.Text)) {
			t.Errorf("chunk %d: chunk_size = %d, want word count %d", i, got, len(strings.Fields(c.Text)))
		}
	}
}

func TestForName_UnknownFallsBackToFixed(t *testing.T) {
	st := ForName("recursive_overlap")
	f, ok := st.(*FixedSize)
	if !ok {
		t.Fatalf("expected *FixedSize fallback, got %T", st)
	}
	if f.Size != DefaultWindowSize || f.Overlap != DefaultOverlap {
		t.Errorf("fallback params = %d/%d, want defaults", f.Size, f.Overlap)
	}

	if _, ok := ForName(StrategySemantic).(*Semantic); !ok {
		t.Error("semantic name did not resolve to Semantic")
	}
}
