package semantic

// SearchResult represents a single vector search hit. Results are always
// ordered by descending similarity (higher = more similar).
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// VectorRecord pairs a vector with its payload for storage. The payload
// must carry enough to reconstruct chunk text and provenance.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}
