package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atlasdocs/atlas-engine/engine/chunk"
	"github.com/atlasdocs/atlas-engine/engine/embed"
	"github.com/atlasdocs/atlas-engine/engine/semantic"
)

func testDeps(store semantic.Store) Deps {
	chunker, err := chunk.NewFixedSize(8, 2)
	if err != nil {
		panic(err)
	}
	return Deps{
		Chunker:  chunker,
		Embedder: embed.NewLocal(64),
		Store:    store,
	}
}

func sampleDoc() Document {
	return Document{
		ID:     "doc-1",
		Source: "handbook",
		Title:  "Refund Policy",
		Text: "Refunds are issued within thirty days of purchase when the item " +
			"is returned unused. Store credit is offered after that window closes. " +
			"Shipping costs are not refundable under any circumstances.",
		Metadata: map[string]any{"lang": "en"},
	}
}

func TestIngest_StoresSearchableChunks(t *testing.T) {
	store := semantic.NewMemoryStore()
	svc := NewService(testDeps(store))
	ctx := context.Background()

	id, err := svc.Ingest(ctx, sampleDoc())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q", id)
	}

	vecs, _ := embed.NewLocal(64).Embed(ctx, []string{"refunds thirty days purchase"})
	hits, err := store.Search(ctx, vecs[0], 3, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no chunks indexed")
	}

	top := hits[0]
	if top.Payload["doc_id"] != "doc-1" || top.Payload["source"] != "handbook" {
		t.Errorf("payload = %+v", top.Payload)
	}
	if text, _ := top.Payload["text"].(string); !strings.Contains(strings.ToLower(text), "refund") {
		t.Errorf("top chunk text = %q", text)
	}
	// Document metadata rides along on every chunk.
	if top.Payload["lang"] != "en" {
		t.Errorf("metadata not propagated: %+v", top.Payload)
	}
}

func TestIngest_DeterministicPointIDs(t *testing.T) {
	if PointID("doc-1", 0) != PointID("doc-1", 0) {
		t.Error("point ids are not deterministic")
	}
	if PointID("doc-1", 0) == PointID("doc-1", 1) || PointID("doc-1", 0) == PointID("doc-2", 0) {
		t.Error("distinct chunks mapped to the same id")
	}
}

func TestIngest_ReingestOverwrites(t *testing.T) {
	store := semantic.NewMemoryStore()
	svc := NewService(testDeps(store))
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, sampleDoc()); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	// The second revision is much shorter; stale chunks must not survive.
	short := sampleDoc()
	short.Text = "Refunds are issued within thirty days."
	if _, err := svc.Reingest(ctx, short); err != nil {
		t.Fatalf("reingest: %v", err)
	}

	vecs, _ := embed.NewLocal(64).Embed(ctx, []string{"refunds"})
	hits, _ := store.Search(ctx, vecs[0], 100, map[string]string{"doc_id": "doc-1"})
	if len(hits) != 1 {
		t.Errorf("got %d chunks after reingest, want 1", len(hits))
	}
}

func TestIngest_DeleteDocument(t *testing.T) {
	store := semantic.NewMemoryStore()
	svc := NewService(testDeps(store))
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, sampleDoc()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := svc.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	vecs, _ := embed.NewLocal(64).Embed(ctx, []string{"refunds"})
	hits, _ := store.Search(ctx, vecs[0], 10, nil)
	if len(hits) != 0 {
		t.Errorf("chunks survived deletion: %+v", hits)
	}
}

func TestValidate_RejectsEmptyDocs(t *testing.T) {
	svc := NewService(testDeps(semantic.NewMemoryStore()))
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, Document{ID: "", Text: "some text"}); err == nil {
		t.Error("empty id accepted")
	}
	if _, err := svc.Ingest(ctx, Document{ID: "doc-1", Text: "   "}); err == nil {
		t.Error("blank text accepted")
	}
}

func TestIngest_ShortTextFallsBackToSingleChunk(t *testing.T) {
	store := semantic.NewMemoryStore()

	chunker, err := chunk.NewSemantic(1000, 100)
	if err != nil {
		t.Fatal(err)
	}
	deps := testDeps(store)
	deps.Chunker = chunker
	svc := NewService(deps)
	ctx := context.Background()

	// Too short for the semantic strategy's minimum chunk size.
	doc := Document{ID: "tiny", Source: "note", Text: "Just one line."}
	if _, err := svc.Ingest(ctx, doc); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	vecs, _ := embed.NewLocal(64).Embed(ctx, []string{"line"})
	hits, _ := store.Search(ctx, vecs[0], 10, map[string]string{"doc_id": "tiny"})
	if len(hits) != 1 {
		t.Fatalf("got %d chunks, want the single fallback chunk", len(hits))
	}
	if hits[0].Payload["text"] != "Just one line." {
		t.Errorf("fallback chunk text = %v", hits[0].Payload["text"])
	}
}

type failingStore struct{ semantic.Store }

func (f *failingStore) Add(context.Context, [][]float32, []map[string]any, []string) ([]string, error) {
	return nil, errors.New("backend unavailable")
}

func TestIngest_StoreErrorPropagates(t *testing.T) {
	deps := testDeps(&failingStore{})
	svc := NewService(deps)

	if _, err := svc.Ingest(context.Background(), sampleDoc()); err == nil || !strings.Contains(err.Error(), "backend unavailable") {
		t.Errorf("err = %v", err)
	}
}
