// Package embed turns text into fixed-dimension vectors. It abstracts over
// a local deterministic model and an optional remote batch API, with
// fallback from remote to local so callers never see a failed or
// mixed-dimension embedding request.
package embed

import "context"

// Provider is the embedding capability consumed by the rest of the engine.
// All vectors from one provider share a single dimension; Dimension reports
// whichever backend is actually serving requests, since the vector store
// sizes its collection from the first dimension it observes.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Remote is a batch embedding API. Implementations declare their own batch
// cap; the fallback provider splits requests accordingly.
type Remote interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
