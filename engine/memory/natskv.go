package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// pushAttempts bounds how often a push re-reads after losing a write race.
const pushAttempts = 5

// sessionKV is the subset of nats.KeyValue the store uses. Narrowed so
// tests can exercise the write-conflict path without a JetStream server.
type sessionKV interface {
	Get(key string) (nats.KeyValueEntry, error)
	Create(key string, value []byte) (uint64, error)
	Update(key string, value []byte, lastRevision uint64) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
}

// NATSStore keeps sessions in a JetStream key-value bucket. The bucket TTL
// expires a key relative to its last revision; since every push rewrites
// the session entry, the expiry slides on write. Deleting the key discards
// the whole history atomically.
type NATSStore struct {
	kv sessionKV
}

// NewNATSStore binds to (or creates) the session bucket with the given TTL.
func NewNATSStore(nc *nats.Conn, bucket string, ttl time.Duration) (*NATSStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("memory: jetstream: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  bucket,
			TTL:     ttl,
			History: 1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("memory: bucket %s: %w", bucket, err)
	}
	return &NATSStore{kv: kv}, nil
}

// Push implements SessionStore. Concurrent pipelines may append to the same
// session, so the read-modify-write is guarded by the key revision: the
// write only lands if the key is unchanged since the read, and a lost race
// re-reads and retries rather than discarding the other writer's turn.
func (s *NATSStore) Push(ctx context.Context, sessionID string, entry []byte) error {
	key := kvKey(sessionID)

	for attempt := 0; attempt < pushAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		kve, err := s.kv.Get(key)
		absent := errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
		if err != nil && !absent {
			return fmt.Errorf("memory: get %s: %w", sessionID, err)
		}

		var entries []json.RawMessage
		var rev uint64
		if !absent {
			if err := json.Unmarshal(kve.Value(), &entries); err != nil {
				return fmt.Errorf("memory: decode %s: %w", sessionID, err)
			}
			rev = kve.Revision()
		}
		entries = append([]json.RawMessage{json.RawMessage(entry)}, entries...)

		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("memory: marshal session %s: %w", sessionID, err)
		}

		if absent {
			_, err = s.kv.Create(key, data)
		} else {
			_, err = s.kv.Update(key, data, rev)
		}
		// Both a Create against a key that appeared and an Update against
		// a stale revision surface the wrong-last-sequence API error that
		// nats.ErrKeyExists matches on.
		if errors.Is(err, nats.ErrKeyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("memory: push %s: %w", sessionID, err)
		}
		return nil
	}
	return fmt.Errorf("memory: push %s: gave up after %d write conflicts", sessionID, pushAttempts)
}

// Recent implements SessionStore.
func (s *NATSStore) Recent(ctx context.Context, sessionID string, limit int) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	entries, err := s.read(kvKey(sessionID))
	if err != nil {
		return nil, err
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	out := make([][]byte, limit)
	for i := 0; i < limit; i++ {
		out[i] = entries[i]
	}
	return out, nil
}

// Delete implements SessionStore.
func (s *NATSStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := kvKey(sessionID)

	_, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory: get %s: %w", sessionID, err)
	}
	if err := s.kv.Delete(key); err != nil {
		return false, fmt.Errorf("memory: delete %s: %w", sessionID, err)
	}
	return true, nil
}

func (s *NATSStore) read(key string) ([]json.RawMessage, error) {
	kve, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get %s: %w", key, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(kve.Value(), &entries); err != nil {
		return nil, fmt.Errorf("memory: decode %s: %w", key, err)
	}
	return entries, nil
}

// kvKey maps a session id onto the KV key charset.
func kvKey(sessionID string) string {
	return "chat." + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '=':
			return r
		default:
			return '_'
		}
	}, sessionID)
}
