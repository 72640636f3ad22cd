package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// fakeKV mimics the JetStream KV revision protocol: writes only land when
// the caller's view of the key is current, exactly like the server.
type fakeKV struct {
	mu           sync.Mutex
	data         map[string][]byte
	revs         map[string]uint64
	beforeUpdate func() // runs between the store's read and its write
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte), revs: make(map[string]uint64)}
}

type fakeEntry struct {
	key   string
	value []byte
	rev   uint64
}

func (e *fakeEntry) Bucket() string             { return "test" }
func (e *fakeEntry) Key() string                { return e.key }
func (e *fakeEntry) Value() []byte              { return e.value }
func (e *fakeEntry) Revision() uint64           { return e.rev }
func (e *fakeEntry) Created() time.Time         { return time.Time{} }
func (e *fakeEntry) Delta() uint64              { return 0 }
func (e *fakeEntry) Operation() nats.KeyValueOp { return nats.KeyValuePut }

func (f *fakeKV) Get(key string) (nats.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return &fakeEntry{key: key, value: val, rev: f.revs[key]}, nil
}

func (f *fakeKV) Create(key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return 0, nats.ErrKeyExists
	}
	f.data[key] = value
	f.revs[key] = 1
	return 1, nil
}

func (f *fakeKV) Update(key string, value []byte, lastRevision uint64) (uint64, error) {
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revs[key] != lastRevision {
		return 0, nats.ErrKeyExists
	}
	f.data[key] = value
	f.revs[key]++
	return f.revs[key], nil
}

func (f *fakeKV) Delete(key string, _ ...nats.DeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	delete(f.revs, key)
	return nil
}

func TestNATSStore_PushRecentDelete(t *testing.T) {
	s := &NATSStore{kv: newFakeKV()}
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
		t.Fatalf("delete = (%v, %v), want (true, nil)", existed, err)
	}
	existed, _ = s.Delete(ctx, "s1")
	if existed {
		t.Error("second delete should report not-existed")
	}
}

func TestNATSStore_PushRetriesOnWriteConflict(t *testing.T) {
	kv := newFakeKV()
	s := &NATSStore{kv: kv}
	ctx := context.Background()

	if err := s.Push(ctx, "s1", []byte(`"t0"`)); err != nil {
		t.Fatalf("seed push: %v", err)
	}

	// A competing pipeline lands its turn between this push's read and
	// write. The stale write must not discard the competitor's entry.
	kv.beforeUpdate = func() {
		if err := s.Push(ctx, "s1", []byte(`"tB"`)); err != nil {
			t.Errorf("competing push: %v", err)
		}
	}
	if err := s.Push(ctx, "s1", []byte(`"tA"`)); err != nil {
		t.Fatalf("push: %v", err)
	}

	entries, err := s.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want all 3 turns to survive: %q", len(entries), entries)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[string(e)] = true
	}
	for _, want := range []string{`"t0"`, `"tA"`, `"tB"`} {
		if !seen[want] {
			t.Errorf("turn %s was lost", want)
		}
	}
}

func TestNATSStore_ConcurrentPushesLoseNothing(t *testing.T) {
	s := &NATSStore{kv: newFakeKV()}
	ctx := context.Background()

	// One retry budget conflict per competing writer keeps this
	// deterministic: a push loses at most writers-1 races.
	const writers = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Push(ctx, "s1", []byte(`"turn"`)); err != nil {
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

func TestKVKey_Sanitization(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"session-1", "chat.session-1"},
		{"a b/c.d", "chat.a_b_c_d"},
		{"UPPER_lower=ok", "chat.UPPER_lower=ok"},
		{"héllo", "chat.h_llo"},
		{"", "chat."},
	}
	for _, tc := range cases {
		if got := kvKey(tc.in); got != tc.want {
			t.Errorf("kvKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
