// Package memory keeps a TTL-bounded, per-session ordered log of
// conversation turns. It persists the transcript and builds the prompt
// context for the query pipeline.
package memory

import "context"

// SessionStore is the storage port behind ConversationMemory. Entries are
// opaque serialized turns kept newest-first per session key; every push
// refreshes a sliding TTL on the whole session. Expiry itself is a passive
// storage-layer behavior, never scheduled by the caller.
type SessionStore interface {
	// Push prepends an entry to the session log and refreshes its TTL.
	Push(ctx context.Context, sessionID string, entry []byte) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([][]byte, error)
	// Delete discards the whole session atomically. Returns false if the
	// session held no entries.
	Delete(ctx context.Context, sessionID string) (bool, error)
}
