package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store for tests and the "memory" driver.
type Memory struct {
	mu    sync.Mutex
	seq   int64
	turns map[string][]Turn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{turns: make(map[string][]Turn)}
}

func (m *Memory) SaveTurn(_ context.Context, conversationID, userMsg, agentMsg, activeAgentAfter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.turns[conversationID] = append(m.turns[conversationID], Turn{
		ID:               m.seq,
		ConversationID:   conversationID,
		UserMessage:      userMsg,
		AgentMessage:     agentMsg,
		ActiveAgentAfter: activeAgentAfter,
		CreatedAt:        time.Now(),
	})
	return nil
}

func (m *Memory) LastActiveAgent(_ context.Context, conversationID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[conversationID]
	if len(turns) == 0 {
		return "", false, nil
	}
	last := turns[len(turns)-1]
	if last.ActiveAgentAfter == "" {
		return "", false, nil
	}
	return last.ActiveAgentAfter, true, nil
}

func (m *Memory) History(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[conversationID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *Memory) Close() error { return nil }
