// Package rag orchestrates the retrieval-augmented query pipeline. It
// accepts a conversational query, short-circuits scheduling intents, pulls
// session context, embeds and searches for relevant chunks, synthesizes an
// answer through the generative backend (or an extractive fallback), and
// persists both turns. A degraded backend never fails the caller's
// request; the result it gets is valid, just poorer.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/atlasdocs/atlas-engine/engine/domain"
	"github.com/atlasdocs/atlas-engine/engine/embed"
	"github.com/atlasdocs/atlas-engine/engine/memory"
	"github.com/atlasdocs/atlas-engine/engine/semantic"
	"github.com/atlasdocs/atlas-engine/pkg/cohere"
	"github.com/atlasdocs/atlas-engine/pkg/metrics"
	"github.com/atlasdocs/atlas-engine/pkg/resilience"
)

// Intent tags returned in Result.Intent.
const (
	IntentBooking      = "booking"
	IntentGeneralQuery = "general_query"
)

const bookingPrompt = "I can help you schedule an interview. Please provide your name, email, preferred date, and time."

// Generator is the generative backend behind the synthesizer. Implemented
// by *cohere.Client; nil when no backend is configured.
type Generator interface {
	Chat(ctx context.Context, req *cohere.ChatRequest) (*cohere.ChatResponse, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK          int
	MaxTokens     int
	Temperature   float64
	ContextTurns  int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		MaxTokens:     500,
		Temperature:   0.7,
		ContextTurns:  5,
		SearchTimeout: 5 * time.Second,
	}
}

// Service is the query orchestration service.
type Service struct {
	embed   embed.Provider
	store   semantic.Store
	memory  *memory.Conversation
	gen     Generator
	breaker *resilience.Breaker
	opts    Options
	logger  *slog.Logger

	queries     func(intent string) *metrics.Counter
	degraded    func(backend string) *metrics.Counter
	queryTiming *metrics.Histogram
}

// New creates the orchestrator. gen may be nil; the extractive fallback
// then serves every query. reg may be nil to disable metric collection
// into a shared registry.
func New(provider embed.Provider, store semantic.Store, conv *memory.Conversation, gen Generator, opts Options, logger *slog.Logger, reg *metrics.Registry) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = DefaultOptions().ContextTurns
	}

	return &Service{
		embed:   provider,
		store:   store,
		memory:  conv,
		gen:     gen,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:    opts,
		logger:  logger,
		queries: func(intent string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("rag_queries_total", "intent", intent), "Queries processed by intent.")
		},
		degraded: func(backend string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("rag_degraded_total", "backend", backend), "Degradations by backend.")
		},
		queryTiming: reg.Histogram("rag_query_seconds", "End-to-end query latency.", nil),
	}
}

// RetrievedChunk mirrors one search hit in the structured result.
type RetrievedChunk struct {
	ChunkID    string         `json:"chunk_id"`
	Similarity float32        `json:"similarity"`
	Metadata   map[string]any `json:"metadata"`
}

// Result is the structured response of one pipeline run.
type Result struct {
	Response            string            `json:"response"`
	Intent              string            `json:"intent"`
	RequiresBookingInfo bool              `json:"requires_booking_info,omitempty"`
	RetrievedChunks     []RetrievedChunk  `json:"retrieved_chunks"`
	Citations           []cohere.Citation `json:"citations"`
	Documents           []cohere.Document `json:"documents"`
}

// Query runs the pipeline for one incoming query. It fails only on caller
// misuse or cancellation, never because a backend degraded.
func (s *Service) Query(ctx context.Context, sessionID, query string) (*Result, error) {
	if sessionID == "" {
		return nil, domain.ErrEmptySessionID
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	start := time.Now()
	defer s.queryTiming.Since(start)

	// 1. Intent check: scheduling queries never reach retrieval.
	if detectBookingIntent(query) {
		s.queries(IntentBooking).Inc()
		return &Result{
			Response:            bookingPrompt,
			Intent:              IntentBooking,
			RequiresBookingInfo: true,
			RetrievedChunks:     []RetrievedChunk{},
			Citations:           []cohere.Citation{},
			Documents:           []cohere.Document{},
		}, nil
	}

	// 2. Conversation context; memory trouble degrades to no context.
	history, err := s.memory.Context(ctx, sessionID, s.opts.ContextTurns)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.degraded("memory").Inc()
		s.logger.Warn("rag: context fetch degraded", "session", sessionID, "err", err)
		history = ""
	}

	// 3. Retrieval; backend errors degrade to an empty set.
	hits, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	// 4. Synthesis.
	answer, citations, documents := s.synthesize(ctx, query, hits, history)

	// 5. Persist both turns, even on the fallback path.
	now := time.Now().UTC()
	if err := s.memory.Append(ctx, sessionID, domain.Turn{
		Role: domain.RoleUser, Content: query, Timestamp: now,
	}); err != nil {
		s.logger.Warn("rag: persist user turn failed", "session", sessionID, "err", err)
	}
	if err := s.memory.Append(ctx, sessionID, domain.Turn{
		Role: domain.RoleAssistant, Content: answer, Timestamp: now,
		Extra: map[string]any{"retrieved_chunks": len(hits)},
	}); err != nil {
		s.logger.Warn("rag: persist assistant turn failed", "session", sessionID, "err", err)
	}

	// 6. Structured result.
	retrieved := make([]RetrievedChunk, len(hits))
	for i, h := range hits {
		retrieved[i] = RetrievedChunk{ChunkID: h.ID, Similarity: h.Score, Metadata: h.Payload}
	}

	s.queries(IntentGeneralQuery).Inc()
	return &Result{
		Response:        answer,
		Intent:          IntentGeneralQuery,
		RetrievedChunks: retrieved,
		Citations:       citations,
		Documents:       documents,
	}, nil
}

// retrieve embeds the query and searches the vector store. Backend errors
// degrade to an empty result set; only cancellation is returned.
func (s *Service) retrieve(ctx context.Context, query string) ([]semantic.SearchResult, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	vecs, err := s.embed.Embed(searchCtx, []string{query})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.degraded("embed").Inc()
		s.logger.Warn("rag: query embedding degraded, skipping retrieval", "err", err)
		return nil, nil
	}

	hits, err := s.store.Search(searchCtx, vecs[0], s.opts.TopK, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.degraded("vectorstore").Inc()
		s.logger.Warn("rag: retrieval degraded to empty set", "err", err)
		return nil, nil
	}
	return hits, nil
}
