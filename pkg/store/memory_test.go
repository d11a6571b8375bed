package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveAndHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 1; i <= 3; i++ {
		err := m.SaveTurn(ctx, "c1", fmt.Sprintf("user %d", i), fmt.Sprintf("agent %d", i), "")
		require.NoError(t, err)
	}
	require.NoError(t, m.SaveTurn(ctx, "c2", "other conv", "reply", "billing"))

	turns, err := m.History(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "user 1", turns[0].UserMessage)
	assert.Equal(t, "agent 3", turns[2].AgentMessage)

	limited, err := m.History(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "user 2", limited[0].UserMessage)
}

func TestMemoryLastActiveAgent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.LastActiveAgent(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SaveTurn(ctx, "c1", "hi", "Please provide your customer id", "billing"))
	name, ok, err := m.LastActiveAgent(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "billing", name)

	// Completed turn clears the resume point.
	require.NoError(t, m.SaveTurn(ctx, "c1", "P994E", "Done.", ""))
	_, ok, err = m.LastActiveAgent(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}
