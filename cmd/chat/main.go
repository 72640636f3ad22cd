// Package main runs an interactive chat session against the query
// pipeline: local REPL in, retrieval-augmented answers out.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/atlasdocs/atlas-engine/engine/embed"
	"github.com/atlasdocs/atlas-engine/engine/memory"
	"github.com/atlasdocs/atlas-engine/engine/rag"
	"github.com/atlasdocs/atlas-engine/engine/semantic"
	"github.com/atlasdocs/atlas-engine/pkg/cohere"
	"github.com/atlasdocs/atlas-engine/pkg/config"
	"github.com/atlasdocs/atlas-engine/pkg/metrics"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(envOr("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote backend is optional; without a key everything runs locally.
	var client *cohere.Client
	if key := cfg.CohereAPIKey(); key != "" && cfg.Embedder.Type == "cohere" {
		client = cohere.New(cohere.Config{
			BaseURL:           cfg.Cohere.BaseURL,
			APIKey:            key,
			ChatModel:         cfg.Cohere.ChatModel,
			EmbedModel:        cfg.Cohere.EmbedModel,
			RequestsPerSecond: cfg.Cohere.RPS,
		})
	}

	local := embed.NewLocal(cfg.Embedder.LocalDim)
	var provider embed.Provider = local
	var gen rag.Generator
	if client != nil {
		provider = embed.NewFallback(client, local, logger)
		gen = client
	} else {
		logger.Info("no remote backend configured, running fully local")
	}

	var store semantic.Store
	if cfg.VectorStore.Type == "qdrant" {
		qs, err := semantic.NewQdrant(cfg.VectorStore.Qdrant.Addr, cfg.VectorStore.Qdrant.Collection)
		if err != nil {
			logger.Error("qdrant connect failed", "err", err)
			os.Exit(1)
		}
		defer qs.Close()
		store = qs
	} else {
		store = semantic.NewMemoryStore()
	}

	ttl := time.Duration(cfg.Memory.TTLSecs) * time.Second
	var sessions memory.SessionStore
	if cfg.Memory.Type == "nats" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Error("nats connect failed", "url", cfg.NATS.URL, "err", err)
			os.Exit(1)
		}
		defer nc.Close()
		sessions, err = memory.NewNATSStore(nc, cfg.Memory.Bucket, ttl)
		if err != nil {
			logger.Error("session bucket failed", "err", err)
			os.Exit(1)
		}
	} else {
		sessions = memory.NewInMemStore(ttl)
	}
	conv := memory.NewConversation(sessions, logger)

	reg := metrics.New()
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			if err := http.ListenAndServe(addr, reg.Handler()); err != nil {
				logger.Error("metrics listener failed", "addr", addr, "err", err)
			}
		}()
	}

	svc := rag.New(provider, store, conv, gen, rag.Options{
		TopK:         cfg.Query.TopK,
		MaxTokens:    cfg.Query.MaxTokens,
		Temperature:  cfg.Query.Temperature,
		ContextTurns: cfg.Query.ContextTurns,
	}, logger, reg)

	repl(ctx, svc, conv, logger)
}

func repl(ctx context.Context, svc *rag.Service, conv *memory.Conversation, logger *slog.Logger) {
	sessionID := uuid.NewString()
	fmt.Printf("session %s  (/clear resets, /quit exits)\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/clear":
			if _, err := conv.Clear(ctx, sessionID); err != nil {
				logger.Error("clear failed", "err", err)
				continue
			}
			sessionID = uuid.NewString()
			fmt.Printf("new session %s\n", sessionID)
			continue
		}

		res, err := svc.Query(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("query failed", "err", err)
			continue
		}

		fmt.Println(res.Response)
		for _, c := range res.Citations {
			fmt.Printf("  [%d:%d] %s (%s)\n", c.Start, c.End, c.Text, strings.Join(c.DocumentIDs, ", "))
		}
	}
}
