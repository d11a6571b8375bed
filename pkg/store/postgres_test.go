package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable container and returns a migrated store.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("morgana_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container (docker unavailable?): %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgres(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresTurnRoundTrip(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTurn(ctx, "c1", "Show my invoices", "Here are your invoices", ""))
	require.NoError(t, s.SaveTurn(ctx, "c1", "What about contracts?", "Please provide your customer id", "contracts"))
	require.NoError(t, s.SaveTurn(ctx, "c2", "hello", "hi", ""))

	turns, err := s.History(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Show my invoices", turns[0].UserMessage)
	assert.Equal(t, "contracts", turns[1].ActiveAgentAfter)

	limited, err := s.History(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "What about contracts?", limited[0].UserMessage)

	name, ok, err := s.LastActiveAgent(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "contracts", name)

	_, ok, err = s.LastActiveAgent(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.LastActiveAgent(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
