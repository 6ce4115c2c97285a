// Package state persists session message history across runs. Backends:
// in-memory (default), sqlite, and redis; pick one via state/factory.
package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneagenthq/oneagent/llm"
)

// Store keeps per-session conversation history. Implementations must be safe
// for concurrent use.
type Store interface {
	// Append adds messages to the end of a session's history.
	Append(ctx context.Context, sessionID string, msgs ...llm.Message) error
	// Load returns a session's history in append order. A session that was
	// never written returns an empty slice and no error.
	Load(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Delete removes a session's history.
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return nil
}
