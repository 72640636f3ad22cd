// Package main indexes documents into the vector store. Files given as
// arguments are ingested directly; with -consume it subscribes to the
// ingest subject and processes documents as they arrive.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/atlasdocs/atlas-engine/engine/chunk"
	"github.com/atlasdocs/atlas-engine/engine/embed"
	"github.com/atlasdocs/atlas-engine/engine/ingest"
	"github.com/atlasdocs/atlas-engine/engine/semantic"
	"github.com/atlasdocs/atlas-engine/pkg/cohere"
	"github.com/atlasdocs/atlas-engine/pkg/config"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	consume := flag.Bool("consume", false, "subscribe to the ingest subject instead of reading files")
	source := flag.String("source", "file", "source label stored with each chunk")
	reingest := flag.Bool("reingest", false, "drop existing chunks of each document first")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(envOr("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(cfg, logger)
	if err != nil {
		logger.Error("wiring failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	if *consume {
		runConsumer(ctx, cfg, svc, logger)
		return
	}

	if flag.NArg() == 0 {
		logger.Error("no input files; pass paths or use -consume")
		os.Exit(1)
	}

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read failed", "path", path, "err", err)
			os.Exit(1)
		}
		doc := ingest.Document{
			ID:     docID(path),
			Source: *source,
			Title:  filepath.Base(path),
			Text:   string(data),
		}

		if *reingest {
			_, err = svc.Reingest(ctx, doc)
		} else {
			_, err = svc.Ingest(ctx, doc)
		}
		if err != nil {
			logger.Error("ingest failed", "path", path, "err", err)
			os.Exit(1)
		}
	}
}

func buildService(cfg *config.Config, logger *slog.Logger) (*ingest.Service, func(), error) {
	cleanup := func() {}

	local := embed.NewLocal(cfg.Embedder.LocalDim)
	var provider embed.Provider = local
	if key := cfg.CohereAPIKey(); key != "" && cfg.Embedder.Type == "cohere" {
		client := cohere.New(cohere.Config{
			BaseURL:           cfg.Cohere.BaseURL,
			APIKey:            key,
			EmbedModel:        cfg.Cohere.EmbedModel,
			RequestsPerSecond: cfg.Cohere.RPS,
		})
		provider = embed.NewFallback(client, local, logger)
	}

	var store semantic.Store
	if cfg.VectorStore.Type == "qdrant" {
		qs, err := semantic.NewQdrant(cfg.VectorStore.Qdrant.Addr, cfg.VectorStore.Qdrant.Collection)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = qs.Close() }
		store = qs
	} else {
		store = semantic.NewMemoryStore()
	}

	chunker := chunkerFor(cfg)
	svc := ingest.NewService(ingest.Deps{
		Chunker:  chunker,
		Embedder: provider,
		Store:    store,
		Logger:   logger,
	})
	return svc, cleanup, nil
}

func chunkerFor(cfg *config.Config) chunk.Strategy {
	switch cfg.Chunker.Strategy {
	case chunk.StrategySemantic:
		if s, err := chunk.NewSemantic(cfg.Chunker.MaxSize, cfg.Chunker.MinSize); err == nil {
			return s
		}
	case chunk.StrategyFixedSize:
		if s, err := chunk.NewFixedSize(cfg.Chunker.WindowSize, cfg.Chunker.Overlap); err == nil {
			return s
		}
	}
	return chunk.ForName(cfg.Chunker.Strategy)
}

func runConsumer(ctx context.Context, cfg *config.Config, svc *ingest.Service, logger *slog.Logger) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Error("nats connect failed", "url", cfg.NATS.URL, "err", err)
		os.Exit(1)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, svc, logger)
	if err != nil {
		logger.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	logger.Info("consumer running", "subject", ingest.Subject)
	<-ctx.Done()
	logger.Info("shutting down")
}

// docID derives a stable document id from a file path.
func docID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
