package ingest

import "github.com/atlasdocs/atlas-engine/engine/domain"

// Document is a unit of content submitted for indexing.
type Document struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Title    string         `json:"title,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChunkedDoc is a document split into chunks.
type ChunkedDoc struct {
	Document
	Chunks []domain.Chunk
}

// EmbeddedDoc carries one embedding per chunk, index-aligned.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}
