//go:build integration

package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectStore(t *testing.T, ttl time.Duration) *NATSStore {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })

	bucket := fmt.Sprintf("test-sessions-%d", time.Now().UnixNano())
	s, err := NewNATSStore(nc, bucket, ttl)
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	return s
}

func TestNATSStore_RoundTrip(t *testing.T) {
	s := connectStore(t, time.Minute)
	ctx := context.Background()

	_ = s.Push(ctx, "s1", []byte(`"first"`))
	_ = s.Push(ctx, "s1", []byte(`"second"`))

	entries, err := s.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 || string(entries[0]) != `"second"` {
		t.Errorf("entries = %q, want newest first", entries)
	}

	existed, err := s.Delete(ctx, "s1")
	if err != nil || !existed {
		t.Fatalf("delete = (%v, %v)", existed, err)
	}
	entries, _ = s.Recent(ctx, "s1", 10)
	if len(entries) != 0 {
		t.Errorf("entries survived delete: %q", entries)
	}
}

func TestNATSStore_ConcurrentPushesAgainstServer(t *testing.T) {
	s := connectStore(t, time.Minute)
	ctx := context.Background()

	const writers = 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Push(ctx, "s1", []byte(fmt.Sprintf(`"turn-%d"`, i))); err != nil {
				t.Errorf("push %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := s.Recent(ctx, "s1", writers)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != writers {
		t.Errorf("got %d entries, want %d", len(entries), writers)
	}
}
