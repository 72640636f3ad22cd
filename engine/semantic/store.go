// Package semantic persists (id, vector, payload) records and answers
// top-k similarity queries. Two backends implement the contract: a Qdrant
// gRPC index and an in-memory brute-force reference store. Backend
// failures surface as typed errors; they are never absorbed into an empty
// result set.
package semantic

import "context"

// Store is the vector store contract.
type Store interface {
	// Add persists vectors with their payloads and returns the record ids,
	// generating UUIDs when ids is nil. The first add against a fresh
	// collection provisions it sized to the dimension of the first vector,
	// with cosine distance; later adds of a different dimension fail with
	// a *domain.DimensionError.
	Add(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) ([]string, error)

	// Search returns at most topK hits ordered by descending similarity.
	// A non-nil filter restricts candidates to payloads matching every
	// given key/value pair exactly.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]SearchResult, error)

	// Delete removes records by id. A deleted id is never returned by a
	// subsequent search.
	Delete(ctx context.Context, ids []string) error

	// DeleteByDoc batch-removes every record belonging to one document.
	DeleteByDoc(ctx context.Context, docID string) error
}
