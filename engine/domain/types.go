// Package domain holds the shared types and error taxonomy of the engine.
package domain

import "time"

// Chunk is a bounded text segment produced from a source document for
// independent embedding and retrieval. Index is strictly increasing within
// the owning document.
type Chunk struct {
	Text  string
	Index int
	DocID string
	// Meta carries strategy-specific metadata: chunk_size (actual word
	// count), start_word/end_word offsets, semantic_boundary, plus any
	// caller-supplied document metadata.
	Meta map[string]any
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation entry. Turns are append-only; a turn is
// never mutated after creation.
type Turn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}
