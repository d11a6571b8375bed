package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morgana-runtime/morgana/pkg/push"
)

func TestRegistry_CreateAndDeliver(t *testing.T) {
	chat := &fakeChat{}
	bridge := newFakeBridge()
	reg := NewRegistry(newTestDeps(chat, bridge))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	require.NoError(t, reg.Create("c1", false))
	assert.Equal(t, 1, reg.Len())
	msg := bridge.wait(t)
	assert.Equal(t, push.MessageTypePresentation, msg.MessageType)

	chat.enqueueText(classifyBilling)
	chat.enqueueText("Here are your invoices.")
	require.NoError(t, reg.Deliver("c1", "Show my invoices", nil))
	msg = bridge.wait(t)
	assert.Equal(t, "Here are your invoices.", msg.Text)
}

func TestRegistry_DuplicateCreateIsNoOp(t *testing.T) {
	chat := &fakeChat{}
	bridge := newFakeBridge()
	reg := NewRegistry(newTestDeps(chat, bridge))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	require.NoError(t, reg.Create("c1", false))
	bridge.wait(t)
	require.NoError(t, reg.Create("c1", false))

	assert.Equal(t, 1, reg.Len())
	select {
	case msg := <-bridge.notify:
		t.Fatalf("second create must not emit another presentation, got %q", msg.Text)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRegistry_DeliverCreatesImplicitly(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(classifyBilling)
	chat.enqueueText("Here are your invoices.")
	bridge := newFakeBridge()
	reg := NewRegistry(newTestDeps(chat, bridge))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	require.NoError(t, reg.Deliver("c1", "Show my invoices", nil))
	assert.Equal(t, 1, reg.Len())

	// Implicit creation emits no presentation, just the turn's answer
	msg := bridge.wait(t)
	assert.Equal(t, push.MessageTypeAssistant, msg.MessageType)
}

func TestRegistry_EmptyConversationIDRejected(t *testing.T) {
	reg := NewRegistry(newTestDeps(&fakeChat{}, newFakeBridge()))
	assert.Error(t, reg.Create("", false))
	assert.Error(t, reg.Deliver("", "hello", nil))
}

func TestRegistry_CreateTerminateCreateIsFresh(t *testing.T) {
	chat := &fakeChat{}
	bridge := newFakeBridge()
	reg := NewRegistry(newTestDeps(chat, bridge))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	// Engage the billing agent so there is in-memory state to lose
	require.NoError(t, reg.Create("c1", false))
	bridge.wait(t) // presentation
	chat.enqueueText(classifyBilling)
	chat.enqueueText("What is your customer id? #INT#")
	require.NoError(t, reg.Deliver("c1", "Show my invoices", nil))
	bridge.wait(t)

	reg.Terminate("c1")
	waitForRegistryLen(t, reg, 0)

	// The recreated conversation starts from a clean pipeline: the next
	// message is classified again instead of fast-pathing to billing.
	require.NoError(t, reg.Create("c1", false))
	bridge.wait(t) // fresh presentation
	calls := chat.callCount()
	chat.enqueueText(classifyBilling)
	chat.enqueueText("Here are your invoices.")
	require.NoError(t, reg.Deliver("c1", "P994E", nil))
	bridge.wait(t)
	assert.Equal(t, calls+2, chat.callCount(), "classifier plus agent, not a fast path")
}

func TestRegistry_ShutdownDrainsAll(t *testing.T) {
	chat := &fakeChat{}
	bridge := newFakeBridge()
	reg := NewRegistry(newTestDeps(chat, bridge))

	require.NoError(t, reg.Create("c1", false))
	require.NoError(t, reg.Create("c2", false))
	bridge.wait(t)
	bridge.wait(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx))
	assert.Equal(t, 0, reg.Len())

	assert.Error(t, reg.Deliver("c3", "hello", nil), "a drained registry accepts no new conversations")
}

func waitForRegistryLen(t *testing.T, reg *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d conversations", want)
}
