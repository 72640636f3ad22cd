package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/atlasdocs/atlas-engine/engine/semantic"
	"github.com/atlasdocs/atlas-engine/pkg/cohere"
)

const noInfoAnswer = "I don't have enough information to answer your question."

const snippetLimit = 500

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// synthesize produces the answer text. The generative backend is tried
// first when configured; any failure there, including an open breaker,
// falls back to extractive synthesis over the retrieved chunks.
func (s *Service) synthesize(ctx context.Context, query string, hits []semantic.SearchResult, history string) (string, []cohere.Citation, []cohere.Document) {
	if s.gen != nil {
		answer, citations, documents, err := s.generate(ctx, query, hits, history)
		if err == nil {
			return answer, citations, documents
		}
		s.degraded("generator").Inc()
		s.logger.Warn("rag: generation failed, using extractive fallback", "err", err)
	}
	return extractiveAnswer(query, chunkTexts(hits)), nil, nil
}

func (s *Service) generate(ctx context.Context, query string, hits []semantic.SearchResult, history string) (string, []cohere.Citation, []cohere.Document, error) {
	documents := groundingDocuments(hits)
	req := &cohere.ChatRequest{
		Message:     buildPrompt(query, hits, history),
		Documents:   documents,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}

	var resp *cohere.ChatResponse
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		r, err := s.gen.Chat(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", nil, nil, err
	}
	return resp.Text, resp.Citations, documents, nil
}

// buildPrompt assembles the grounding prompt: retrieved context, recent
// conversation when present, then the question.
func buildPrompt(query string, hits []semantic.SearchResult, history string) string {
	var b strings.Builder
	b.WriteString("Based on the following context information, please answer the user's question. ")
	b.WriteString("If the context doesn't contain relevant information, say so clearly.\n\n")

	b.WriteString("Context:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "[Similarity: %.3f] %s\n\n", h.Score, chunkText(h))
	}

	if history != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "User Question: %s\n\n", query)
	b.WriteString("Please provide a comprehensive answer based on the context above:")
	return b.String()
}

// groundingDocuments converts search hits into citation-ready documents.
func groundingDocuments(hits []semantic.SearchResult) []cohere.Document {
	documents := make([]cohere.Document, len(hits))
	for i, h := range hits {
		text := chunkText(h)
		snippet := truncate(text, snippetLimit)
		documents[i] = cohere.Document{
			ID:      h.ID,
			Title:   "Document Chunk " + h.ID,
			Snippet: snippet,
			Text:    text,
			URL:     "chunk://" + h.ID,
		}
	}
	return documents
}

// extractiveAnswer builds an answer without a generative backend: pick the
// chunk with the most query-word overlap and quote its most relevant
// sentences.
func extractiveAnswer(query string, chunks []string) string {
	if len(chunks) == 0 {
		return noInfoAnswer
	}

	queryWords := wordSet(query)

	best := 0
	maxOverlap := 0
	for i, chunk := range chunks {
		n := overlap(queryWords, chunk)
		if n > maxOverlap {
			maxOverlap = n
			best = i
		}
	}

	if maxOverlap > 0 {
		var relevant []string
		for _, sentence := range sentenceEnd.Split(chunks[best], -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if overlap(queryWords, sentence) > 0 {
				relevant = append(relevant, sentence+".")
				if len(relevant) == 2 {
					break
				}
			}
		}
		if len(relevant) > 0 {
			return strings.Join(relevant, " ")
		}
	}

	return "Based on the available information: " + truncate(chunks[0], 200) + "..."
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func chunkTexts(hits []semantic.SearchResult) []string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = chunkText(h)
	}
	return texts
}

// chunkText pulls the stored text out of a hit's payload.
func chunkText(h semantic.SearchResult) string {
	if text, ok := h.Payload["text"].(string); ok && text != "" {
		return text
	}
	return "Chunk " + h.ID
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// overlap counts distinct query words that occur in text.
func overlap(words map[string]struct{}, text string) int {
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := words[w]; ok {
			seen[w] = struct{}{}
		}
	}
	return len(seen)
}
