package semantic

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/atlasdocs/atlas-engine/engine/domain"
	"github.com/google/uuid"
)

// MemoryStore is the in-memory reference backend: brute-force cosine
// similarity over all records with a full resort per query. O(n log n) per
// search, intended for development and tests only. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	records map[string]VectorRecord
	order   []string // insertion order, used for stable tie-breaking
}

// NewMemoryStore creates an empty in-memory store. The collection
// dimension is fixed by the first vector added.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]VectorRecord)}
}

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	if ids == nil {
		ids = make([]string, len(vectors))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.dim {
			return nil, &domain.DimensionError{Want: s.dim, Got: len(v)}
		}
	}

	for i, id := range ids {
		var payload map[string]any
		if i < len(payloads) {
			payload = payloads[i]
		}
		if _, exists := s.records[id]; !exists {
			s.order = append(s.order, id)
		}
		s.records[id] = VectorRecord{ID: id, Vector: vectors[i], Payload: payload}
	}
	return ids, nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, &domain.DimensionError{Want: s.dim, Got: len(vector)}
	}

	results := make([]SearchResult, 0, len(s.records))
	for _, id := range s.order {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		if !matchesFilter(rec.Payload, filter) {
			continue
		}
		results = append(results, SearchResult{
			ID:      rec.ID,
			Score:   cosine(vector, rec.Vector),
			Payload: rec.Payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	s.compactOrder()
	return nil
}

// DeleteByDoc implements Store.
func (s *MemoryStore) DeleteByDoc(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.Payload != nil && rec.Payload["doc_id"] == docID {
			delete(s.records, id)
		}
	}
	s.compactOrder()
	return nil
}

// compactOrder drops order entries for deleted records. Must hold mu.
func (s *MemoryStore) compactOrder() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.records[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}

func matchesFilter(payload map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if str, ok := got.(string); !ok || str != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
