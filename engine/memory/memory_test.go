package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/atlasdocs/atlas-engine/engine/domain"
)

func TestConversation_HistoryChronological(t *testing.T) {
	c := NewConversation(NewInMemStore(time.Hour), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		turn := domain.Turn{Role: domain.RoleUser, Content: fmt.Sprintf("msg-%d", i), Timestamp: time.Now()}
		if err := c.Append(ctx, "s1", turn); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, err := c.History(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	// The 3 most recent turns, oldest first.
	for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
		if turns[i].Content != want {
			t.Errorf("turn %d = %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestConversation_ClearThenEmpty(t *testing.T) {
	c := NewConversation(NewInMemStore(time.Hour), nil)
	ctx := context.Background()

	_ = c.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: "hello"})

	cleared, err := c.Clear(ctx, "s1")
	if err != nil || !cleared {
		t.Fatalf("clear = (%v, %v), want (true, nil)", cleared, err)
	}

	turns, err := c.History(ctx, "s1", 10)
	if err != nil || len(turns) != 0 {
		t.Errorf("history after clear = (%v, %v), want empty", turns, err)
	}

	// Clearing a session with no key reports false.
	cleared, err = c.Clear(ctx, "s1")
	if err != nil || cleared {
		t.Errorf("second clear = (%v, %v), want (false, nil)", cleared, err)
	}
}

func TestConversation_ContextFormat(t *testing.T) {
	c := NewConversation(NewInMemStore(time.Hour), nil)
	ctx := context.Background()

	_ = c.Append(ctx, "s1", domain.Turn{Role: domain.RoleUser, Content: "What is Go?"})
	_ = c.Append(ctx, "s1", domain.Turn{Role: domain.RoleAssistant, Content: "A programming language."})

	text, err := c.Context(ctx, "s1", 5)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	want := "User: What is Go?\nAssistant: A programming language."
	if text != want {
		t.Errorf("context = %q, want %q", text, want)
	}
}

func TestConversation_EmptySessionID(t *testing.T) {
	c := NewConversation(NewInMemStore(time.Hour), nil)
	ctx := context.Background()

	if err := c.Append(ctx, "", domain.Turn{}); !errors.Is(err, domain.ErrEmptySessionID) {
		t.Errorf("append: expected ErrEmptySessionID, got %v", err)
	}
	if _, err := c.History(ctx, "", 1); !errors.Is(err, domain.ErrEmptySessionID) {
		t.Errorf("history: expected ErrEmptySessionID, got %v", err)
	}
}

func TestInMemStore_TTLSlidesOnWrite(t *testing.T) {
	s := NewInMemStore(10 * time.Minute)
	clock := time.Now()
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = s.Push(ctx, "s1", []byte("a"))

	// A later write refreshes the whole session's TTL.
	clock = clock.Add(8 * time.Minute)
	_ = s.Push(ctx, "s1", []byte("b"))

	clock = clock.Add(8 * time.Minute) // 16m after first write, 8m after second
	entries, err := s.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("TTL did not slide: got %d entries", len(entries))
	}

	clock = clock.Add(3 * time.Minute) // past the refreshed TTL
	entries, _ = s.Recent(ctx, "s1", 10)
	if len(entries) != 0 {
		t.Errorf("expected expiry, got %d entries", len(entries))
	}

	// Expired session reports false on delete.
	existed, _ := s.Delete(ctx, "s1")
	if existed {
		t.Error("expired session should report not-existed")
	}
}

func TestInMemStore_NewestFirst(t *testing.T) {
	s := NewInMemStore(time.Hour)
	ctx := context.Background()
	_ = s.Push(ctx, "s1", []byte("first"))
	_ = s.Push(ctx, "s1", []byte("second"))

	entries, err := s.Recent(ctx, "s1", 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("recent = (%v, %v)", entries, err)
	}
	if string(entries[0]) != "second" {
		t.Errorf("entries[0] = %q, want newest", entries[0])
	}
}

func TestConversation_SkipsMalformedEntries(t *testing.T) {
	store := NewInMemStore(time.Hour)
	ctx := context.Background()
	_ = store.Push(ctx, "s1", []byte(`{"role":"user","content":"ok"}`))
	_ = store.Push(ctx, "s1", []byte(`{not json`))

	c := NewConversation(store, nil)
	turns, err := c.History(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 1 || !strings.Contains(turns[0].Content, "ok") {
		t.Errorf("expected the single well-formed turn, got %v", turns)
	}
}
