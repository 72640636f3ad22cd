// Package cohere is a minimal HTTP client for the Cohere-style generative
// API: batched text embedding and chat grounded on caller-supplied
// documents with citation spans. It covers exactly the surface the engine
// consumes; vendor parity beyond that is a non-goal.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://api.cohere.ai"
	DefaultChatModel  = "command-r"
	DefaultEmbedModel = "embed-english-v3.0"

	// EmbedDimension is the output dimension of the default embed model.
	EmbedDimension = 1024
	// MaxEmbedBatch is the provider-declared batch cap per embed call.
	MaxEmbedBatch = 96
)

// Config configures the client. Zero fields take defaults.
type Config struct {
	BaseURL           string
	APIKey            string
	ChatModel         string
	EmbedModel        string
	RequestsPerSecond float64
}

// Client talks to the remote API with outbound rate limiting and OTel
// HTTP instrumentation.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	client     *http.Client
	limiter    *rate.Limiter
}

// New creates a client. The API key is required by the remote service but
// not validated here; construction never fails.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type embedReq struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResp struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedBatch embeds up to MaxEmbedBatch texts in one call. Larger batches
// are the caller's job to split.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxEmbedBatch {
		return nil, fmt.Errorf("cohere: batch of %d exceeds limit %d", len(texts), MaxEmbedBatch)
	}

	var result embedResp
	err := c.post(ctx, "/v1/embed", embedReq{
		Texts:     texts,
		Model:     c.embedModel,
		InputType: "search_document",
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere: embed returned %d vectors for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension reports the embed model's output dimension.
func (c *Client) Dimension() int { return EmbedDimension }

// Document is a grounding document passed to Chat.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Text    string `json:"text"`
	URL     string `json:"url"`
}

// Citation is a span of the reply supported by grounding documents.
type Citation struct {
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Text        string   `json:"text"`
	DocumentIDs []string `json:"document_ids"`
}

// ChatRequest asks for a grounded reply.
type ChatRequest struct {
	Message     string
	Documents   []Document
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the generated reply plus citation spans.
type ChatResponse struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

type chatWireReq struct {
	Model           string     `json:"model"`
	Message         string     `json:"message"`
	Documents       []Document `json:"documents,omitempty"`
	MaxTokens       int        `json:"max_tokens,omitempty"`
	Temperature     float64    `json:"temperature,omitempty"`
	CitationQuality string     `json:"citation_quality,omitempty"`
}

// Chat sends a grounded chat request.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	wire := chatWireReq{
		Model:       c.chatModel,
		Message:     req.Message,
		Documents:   req.Documents,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(req.Documents) > 0 {
		wire.CitationQuality = "accurate"
	}

	var result ChatResponse
	if err := c.post(ctx, "/v1/chat", wire, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("cohere: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cohere: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cohere: %s: status %d: %s", path, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cohere: decode %s: %w", path, err)
	}
	return nil
}
