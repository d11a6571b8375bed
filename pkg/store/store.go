// Package store persists the append-only conversation turn log.
package store

import (
	"context"
	"time"
)

// Turn is one persisted user/agent exchange.
type Turn struct {
	ID               int64     `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	UserMessage      string    `json:"user_message"`
	AgentMessage     string    `json:"agent_message"`
	ActiveAgentAfter string    `json:"active_agent_after,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store is the persistence contract the conversation core depends on.
// Turn order within a conversation is preserved by the caller's serial
// dispatch; the store only appends.
type Store interface {
	// SaveTurn appends one exchange. activeAgentAfter is the intent name
	// engaged after the turn, or empty when no agent is active.
	SaveTurn(ctx context.Context, conversationID, userMsg, agentMsg, activeAgentAfter string) error

	// LastActiveAgent returns the agent engaged at the end of the most
	// recent turn. ok is false when the conversation has no turns or no
	// agent was active.
	LastActiveAgent(ctx context.Context, conversationID string) (name string, ok bool, err error)

	// History returns the most recent turns, oldest first. limit <= 0
	// means no limit.
	History(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	Close() error
}
