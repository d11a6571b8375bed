package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_CreatesAndCachesAgents(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText("Here are your invoices.")
	router := NewRouter("c1", newTestDeps(chat, nil))

	resp, name, found := router.Route(context.Background(), testTurn("show my invoices"), Classification{Intent: "billing", Confidence: 0.9})
	require.True(t, found)
	assert.Equal(t, "billing", name)
	assert.True(t, resp.IsCompleted)
	assert.Equal(t, 1, router.AgentCount())

	first, ok := router.Cached("billing")
	require.True(t, ok)

	chat.enqueueText("Anything else.")
	_, _, found = router.Route(context.Background(), testTurn("and my other invoices"), Classification{Intent: "billing"})
	require.True(t, found)
	assert.Equal(t, 1, router.AgentCount(), "same intent must reuse the cached instance")

	second, _ := router.Cached("billing")
	assert.Same(t, first, second)
}

func TestRouter_UnresolvableIntent(t *testing.T) {
	router := NewRouter("c1", newTestDeps(&fakeChat{}, nil))

	_, _, found := router.Route(context.Background(), testTurn("what is the weather"), Classification{Intent: "weather", Confidence: 0.7})
	assert.False(t, found)
	assert.Equal(t, 0, router.AgentCount())
}

func TestRouter_BroadcastExcludesSource(t *testing.T) {
	chat := &fakeChat{}
	deps := newTestDeps(chat, nil)
	router := NewRouter("c1", deps)

	chat.enqueueText("billing ready")
	_, _, found := router.Route(context.Background(), testTurn("invoices"), Classification{Intent: "billing"})
	require.True(t, found)
	chat.enqueueText("contract ready")
	_, _, found = router.Route(context.Background(), testTurn("contracts"), Classification{Intent: "contract"})
	require.True(t, found)

	billing, _ := router.Cached("billing")
	contract, _ := router.Cached("contract")

	// Seed a distinguishable value into the source before broadcasting
	billing.provider.Set("scratch", "private")

	router.Broadcast("billing", map[string]string{"userId": "P994E"})

	v, ok := contract.provider.Get("userId")
	require.True(t, ok, "other agents must receive the broadcast")
	assert.Equal(t, "P994E", v)

	_, ok = billing.provider.Get("userId")
	assert.False(t, ok, "the source must never receive its own broadcast")
}

func TestRouter_LateAgentsSeeEarlierBroadcasts(t *testing.T) {
	chat := &fakeChat{}
	deps := newTestDeps(chat, nil)
	router := NewRouter("c1", deps)

	chat.enqueueText("billing ready")
	_, _, found := router.Route(context.Background(), testTurn("invoices"), Classification{Intent: "billing"})
	require.True(t, found)

	router.Broadcast("billing", map[string]string{"userId": "P994E"})

	// The contract agent is created after the broadcast and must still
	// observe the accumulated shared context without asking.
	chat.enqueueText("contract ready")
	_, _, found = router.Route(context.Background(), testTurn("contracts"), Classification{Intent: "contract"})
	require.True(t, found)

	contract, _ := router.Cached("contract")
	v, ok := contract.provider.Get("userId")
	require.True(t, ok)
	assert.Equal(t, "P994E", v)
}

func TestRouter_EndToEndSharedContextFlow(t *testing.T) {
	chat := &fakeChat{}
	deps := newTestDeps(chat, nil)
	router := NewRouter("c1", deps)

	// The billing agent's tool writes the shared userId during its turn
	chat.enqueueToolCalls(toolCallSetContext("userId", "P994E"))
	chat.enqueueText("Noted your id.")
	_, _, found := router.Route(context.Background(), testTurn("my id is P994E"), Classification{Intent: "billing"})
	require.True(t, found)

	chat.enqueueText("contract ready")
	_, _, found = router.Route(context.Background(), testTurn("show contracts"), Classification{Intent: "contract"})
	require.True(t, found)

	contract, _ := router.Cached("contract")
	v, ok := contract.provider.Get("userId")
	require.True(t, ok, "contract agent sees the billing agent's shared write")
	assert.Equal(t, "P994E", v)
}
