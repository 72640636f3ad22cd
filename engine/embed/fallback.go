package embed

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/atlasdocs/atlas-engine/pkg/fn"
)

const (
	// DefaultRemoteBatchSize is the documented batch cap of the remote API.
	DefaultRemoteBatchSize = 96
	// DefaultBatchWorkers bounds how many sub-batches of one request may be
	// in flight at once.
	DefaultBatchWorkers = 4
)

// Fallback embeds through the remote backend when one is configured and
// degrades to the local backend when it fails. A failed sub-batch degrades
// the whole request: the two backends may disagree on dimension, and one
// call must never yield a mixed-dimension result.
type Fallback struct {
	remote    Remote // nil when no remote backend is configured
	local     *Local
	batchSize int
	workers   int
	logger    *slog.Logger

	// degraded tracks which backend served the last request so Dimension
	// reports the one actually serving.
	degraded atomic.Bool
}

// NewFallback wires the remote and local backends. remote may be nil, in
// which case every request is served locally.
func NewFallback(remote Remote, local *Local, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	if local == nil {
		local = NewLocal(DefaultLocalDimension)
	}
	return &Fallback{
		remote:    remote,
		local:     local,
		batchSize: DefaultRemoteBatchSize,
		workers:   DefaultBatchWorkers,
		logger:    logger,
	}
}

// Embed implements Provider. Sub-batches run concurrently up to the worker
// bound and are reassembled in input order.
func (f *Fallback) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if f.remote == nil {
		return f.local.Embed(ctx, texts)
	}

	batches := fn.Split(texts, f.batchSize)
	results := fn.ParMapResult(batches, f.workers, func(batch []string) fn.Result[[][]float32] {
		return fn.FromPair(f.remote.EmbedBatch(ctx, batch))
	})

	vecs, err := fn.Collect(results).Unwrap()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.degraded.Store(true)
		f.logger.Warn("embed: remote backend failed, degrading to local", "err", err, "texts", len(texts))
		return f.local.Embed(ctx, texts)
	}

	f.degraded.Store(false)
	out := make([][]float32, 0, len(texts))
	for _, batch := range vecs {
		out = append(out, batch...)
	}
	return out, nil
}

// Dimension implements Provider.
func (f *Fallback) Dimension() int {
	if f.remote == nil || f.degraded.Load() {
		return f.local.Dimension()
	}
	return f.remote.Dimension()
}
