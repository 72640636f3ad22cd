// Package ingest is the document indexing pipeline: validation, chunking,
// embedding, and vector storage composed as stages. Point ids are derived
// deterministically from document id and chunk index, so re-ingesting a
// document overwrites its previous chunks instead of duplicating them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasdocs/atlas-engine/engine/chunk"
	"github.com/atlasdocs/atlas-engine/engine/domain"
	"github.com/atlasdocs/atlas-engine/engine/embed"
	"github.com/atlasdocs/atlas-engine/engine/semantic"
	"github.com/atlasdocs/atlas-engine/pkg/fn"
)

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Chunker  chunk.Strategy
	Embedder embed.Provider
	Store    semantic.Store
	Logger   *slog.Logger
}

// Validate rejects documents with no id or no content.
var Validate fn.Stage[Document, Document] = func(ctx context.Context, doc Document) fn.Result[Document] {
	if strings.TrimSpace(doc.ID) == "" {
		return fn.Err[Document](errors.New("ingest: document id is empty"))
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fn.Err[Document](fmt.Errorf("ingest: document %s has no text", doc.ID))
	}
	return fn.Ok(doc)
}

// NewChunk creates the chunking stage. Content too short to produce a
// chunk under the configured strategy falls back to a single whole-text
// chunk so no document is silently dropped.
func NewChunk(strategy chunk.Strategy) fn.Stage[Document, ChunkedDoc] {
	return func(_ context.Context, doc Document) fn.Result[ChunkedDoc] {
		chunks := strategy.Chunk(doc.Text, doc.Metadata)
		if len(chunks) == 0 {
			chunks = []domain.Chunk{{Text: doc.Text, Index: 0}}
		}
		for i := range chunks {
			chunks[i].DocID = doc.ID
		}
		return fn.Ok(ChunkedDoc{Document: doc, Chunks: chunks})
	}
}

// NewEmbed creates the embedding stage. Batching and remote fallback live
// inside the provider.
func NewEmbed(provider embed.Provider) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := make([]string, len(doc.Chunks))
		for i, c := range doc.Chunks {
			texts[i] = c.Text
		}
		embeddings, err := provider.Embed(ctx, texts)
		if err != nil {
			return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed %s: %w", doc.ID, err))
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// NewStore creates the storage stage.
func NewStore(store semantic.Store) fn.Stage[EmbeddedDoc, string] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		ids := make([]string, len(doc.Chunks))
		payloads := make([]map[string]any, len(doc.Chunks))
		for i, c := range doc.Chunks {
			ids[i] = PointID(doc.ID, c.Index)
			payload := map[string]any{
				"text":        c.Text,
				"doc_id":      doc.ID,
				"source":      doc.Source,
				"chunk_index": c.Index,
			}
			if doc.Title != "" {
				payload["title"] = doc.Title
			}
			for k, v := range c.Meta {
				if _, taken := payload[k]; !taken {
					payload[k] = v
				}
			}
			payloads[i] = payload
		}

		if _, err := store.Add(ctx, doc.Embeddings, payloads, ids); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: store %s: %w", doc.ID, err))
		}
		return fn.Ok(doc.ID)
	}
}

// PointID derives the deterministic vector store id for one chunk.
func PointID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, index))).String()
}

// loggedTap returns a pass-through stage that logs entry and exit duration.
func loggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes the full indexing pipeline with tracing and logging
// around each stage.
func NewPipeline(deps Deps) fn.Stage[Document, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.TracedStage("ingest.validate", fn.Then(loggedTap[Document]("validate", log), Validate))
	chunked := fn.TracedStage("ingest.chunk", NewChunk(deps.Chunker))
	embedded := fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder))
	stored := fn.TracedStage("ingest.store", NewStore(deps.Store))

	return fn.Then(validated, fn.Then(chunked, fn.Then(embedded, stored)))
}

// Service runs documents through the pipeline and manages their lifecycle
// in the vector store.
type Service struct {
	pipeline fn.Stage[Document, string]
	store    semantic.Store
	logger   *slog.Logger
}

// NewService wires the pipeline from its dependencies.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		pipeline: NewPipeline(deps),
		store:    deps.Store,
		logger:   deps.Logger,
	}
}

// Ingest indexes one document and returns its id.
func (s *Service) Ingest(ctx context.Context, doc Document) (string, error) {
	result := s.pipeline(ctx, doc)
	id, err := result.Unwrap()
	if err != nil {
		return "", err
	}
	s.logger.Info("ingest: indexed", "doc_id", id)
	return id, nil
}

// Reingest drops a document's existing chunks before indexing it again.
// Needed when a new revision produces fewer chunks than the old one, since
// deterministic ids only overwrite chunks that still exist.
func (s *Service) Reingest(ctx context.Context, doc Document) (string, error) {
	if err := s.store.DeleteByDoc(ctx, doc.ID); err != nil {
		return "", fmt.Errorf("ingest: clear %s: %w", doc.ID, err)
	}
	return s.Ingest(ctx, doc)
}

// DeleteDocument removes every chunk of a document from the vector store.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	return s.store.DeleteByDoc(ctx, docID)
}
