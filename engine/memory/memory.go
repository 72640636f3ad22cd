package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/atlasdocs/atlas-engine/engine/domain"
)

// DefaultTTL is the sliding session expiry window.
const DefaultTTL = time.Hour

// Conversation is the TTL-bounded per-session transcript. Turns are
// append-only; expiry is handled by the underlying SessionStore.
type Conversation struct {
	store  SessionStore
	logger *slog.Logger
}

// NewConversation wraps a SessionStore.
func NewConversation(store SessionStore, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{store: store, logger: logger}
}

// Append records a turn, refreshing the session TTL.
func (c *Conversation) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	if sessionID == "" {
		return domain.ErrEmptySessionID
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	return c.store.Push(ctx, sessionID, data)
}

// History returns up to limit most recent turns in chronological order,
// oldest first. Entries that fail to decode are skipped, not fatal.
func (c *Conversation) History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if sessionID == "" {
		return nil, domain.ErrEmptySessionID
	}
	entries, err := c.store.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	turns := make([]domain.Turn, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var turn domain.Turn
		if err := json.Unmarshal(entries[i], &turn); err != nil {
			c.logger.Warn("memory: skipping malformed turn", "session", sessionID, "err", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Context flattens recent history into "Role: content" lines for prompt
// building. maxTurns counts exchanges, so twice as many raw turns are read.
func (c *Conversation) Context(ctx context.Context, sessionID string, maxTurns int) (string, error) {
	turns, err := c.History(ctx, sessionID, maxTurns*2)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, titleRole(turn.Role)+": "+turn.Content)
	}
	return strings.Join(lines, "\n"), nil
}

// Clear discards the session. Returns false if there was nothing to clear.
func (c *Conversation) Clear(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, domain.ErrEmptySessionID
	}
	return c.store.Delete(ctx, sessionID)
}

func titleRole(role string) string {
	if role == "" {
		return "User"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
