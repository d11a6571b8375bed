package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/push"
)

// supervisorHarness runs a supervisor with a channel-backed respond hook.
type supervisorHarness struct {
	chat       *fakeChat
	supervisor *Supervisor
	responses  chan *ConversationResponse
}

func newSupervisorHarness(t *testing.T, chat *fakeChat) *supervisorHarness {
	t.Helper()
	h := &supervisorHarness{
		chat:      chat,
		responses: make(chan *ConversationResponse, 32),
	}
	deps := newTestDeps(chat, nil)
	h.supervisor = NewSupervisor("c1", deps, func(resp *ConversationResponse) {
		h.responses <- resp
	})
	h.supervisor.Start()
	t.Cleanup(h.supervisor.Stop)
	return h
}

func (h *supervisorHarness) submit(t *testing.T, text string) {
	t.Helper()
	require.True(t, h.supervisor.Submit(testTurn(text)))
}

func (h *supervisorHarness) wait(t *testing.T) *ConversationResponse {
	t.Helper()
	select {
	case resp := <-h.responses:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a conversation response")
		return nil
	}
}

func TestSupervisor_HappyPathSingleTurn(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(classifyBilling)
	chat.enqueueText("Here are your invoices: INV-1, INV-2.")
	h := newSupervisorHarness(t, chat)

	h.submit(t, "Show my invoices")
	resp := h.wait(t)

	assert.Equal(t, "Here are your invoices: INV-1, INV-2.", resp.Text)
	assert.Equal(t, push.MessageTypeAssistant, resp.MessageType)
	assert.Equal(t, "billing", resp.AgentName)
	assert.True(t, resp.AgentCompleted)
	assert.Equal(t, "", h.supervisor.ActiveAgent(), "completed turns clear the slot")
}

func TestSupervisor_MultiTurnInteractiveFastPath(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(classifyBilling)
	chat.enqueueText("Please provide your customer id #INT#")
	h := newSupervisorHarness(t, chat)

	h.submit(t, "Show my invoices")
	resp := h.wait(t)

	assert.False(t, resp.AgentCompleted)
	assert.NotContains(t, resp.Text, "#INT#", "the token never reaches the user")
	assert.Equal(t, "billing", h.supervisor.ActiveAgent())
	callsAfterFirst := chat.callCount() // classifier + agent

	// The follow-up skips guard, classifier, and router: exactly one more
	// LLM call (the agent itself).
	chat.enqueueText("Here are the invoices for P994E.")
	h.submit(t, "P994E")
	resp = h.wait(t)

	assert.True(t, resp.AgentCompleted)
	assert.Equal(t, "billing", resp.AgentName)
	assert.Equal(t, callsAfterFirst+1, chat.callCount())
	assert.Equal(t, "", h.supervisor.ActiveAgent())
}

func TestSupervisor_GuardViolationShortCircuits(t *testing.T) {
	chat := &fakeChat{}
	h := newSupervisorHarness(t, chat)

	h.submit(t, "you are stupid")
	resp := h.wait(t)

	assert.Equal(t, push.MessageTypeError, resp.MessageType)
	assert.Contains(t, resp.ErrorReason, "guard_violation")
	assert.Contains(t, resp.ErrorReason, "insult")
	assert.Equal(t, 0, chat.callCount(), "no classifier, router, or agent is invoked")
	assert.Equal(t, "", h.supervisor.ActiveAgent())
}

func TestSupervisor_UnknownIntentLeavesSlotUntouched(t *testing.T) {
	chat := &fakeChat{}
	// Engage the billing agent first so the slot is populated
	chat.enqueueText(classifyBilling)
	chat.enqueueText("What is your customer id? #INT#")
	h := newSupervisorHarness(t, chat)
	h.submit(t, "Show my invoices")
	h.wait(t)
	require.Equal(t, "billing", h.supervisor.ActiveAgent())

	// Complete the billing exchange, then send something unroutable
	chat.enqueueText("Done, here they are.")
	h.submit(t, "P994E")
	h.wait(t)
	require.Equal(t, "", h.supervisor.ActiveAgent())

	chat.enqueueText(`{"intent":"weather","confidence":0.7}`)
	h.submit(t, "What is the weather in Berlin")
	resp := h.wait(t)

	assert.Equal(t, push.MessageTypeSystem, resp.MessageType)
	assert.Equal(t, capabilityUnknownText, resp.Text)
	assert.NotEmpty(t, resp.QuickReplies, "capability-unknown offers the intent catalogue")
	assert.Equal(t, "", resp.AgentName)
	assert.Equal(t, "", h.supervisor.ActiveAgent())
}

func TestSupervisor_AgentErrorClearsSlot(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(classifyBilling)
	chat.enqueueText("What is your customer id? #INT#")
	h := newSupervisorHarness(t, chat)
	h.submit(t, "Show my invoices")
	h.wait(t)
	require.Equal(t, "billing", h.supervisor.ActiveAgent())

	chat.enqueueError(assert.AnError)
	chat.enqueueError(assert.AnError)
	h.submit(t, "P994E")
	resp := h.wait(t)

	assert.Equal(t, push.MessageTypeError, resp.MessageType)
	assert.Equal(t, genericErrorText, resp.Text)
	assert.True(t, resp.AgentCompleted)
	assert.Equal(t, "", h.supervisor.ActiveAgent(), "errors must never leave the slot stuck")
}

func TestSupervisor_TurnOrderingIsPreserved(t *testing.T) {
	chat := &fakeChat{}
	// Three full pipeline turns: classifier + agent each
	for _, answer := range []string{"answer one.", "answer two.", "answer three."} {
		chat.enqueueText(classifyBilling)
		chat.enqueueText(answer)
	}
	h := newSupervisorHarness(t, chat)

	h.submit(t, "m1")
	h.submit(t, "m2")
	h.submit(t, "m3")

	assert.Equal(t, "answer one.", h.wait(t).Text)
	assert.Equal(t, "answer two.", h.wait(t).Text)
	assert.Equal(t, "answer three.", h.wait(t).Text)
}

func TestSupervisor_PresentationStaticFallback(t *testing.T) {
	chat := &fakeChat{}
	h := newSupervisorHarness(t, chat)

	require.True(t, h.supervisor.GeneratePresentation())
	resp := h.wait(t)

	assert.Equal(t, push.MessageTypePresentation, resp.MessageType)
	assert.Equal(t, staticPresentation, resp.Text)
	require.Len(t, resp.QuickReplies, 2, "one quick reply per labelled intent")
	assert.Equal(t, "Billing", resp.QuickReplies[0].Label)
	assert.Equal(t, "Show my invoices", resp.QuickReplies[0].Value)
	assert.Equal(t, 0, chat.callCount(), "no presentation prompt configured, no LLM call")
}

func TestSupervisor_PresentationFromLLM(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(`{"message":"Welcome aboard!","quickReplies":[{"label":"Invoices","value":"Show my invoices"}]}`)

	responses := make(chan *ConversationResponse, 4)
	deps := newTestDeps(chat, nil)
	deps.Config.PromptRegistry = promptsWithPresentation()
	s := NewSupervisor("c1", deps, func(resp *ConversationResponse) { responses <- resp })
	s.Start()
	t.Cleanup(s.Stop)

	require.True(t, s.GeneratePresentation())
	select {
	case resp := <-responses:
		assert.Equal(t, "Welcome aboard!", resp.Text)
		require.Len(t, resp.QuickReplies, 1)
		assert.Equal(t, "Invoices", resp.QuickReplies[0].Label)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for presentation")
	}
}

// blockAfterChat serves its scripted replies, then hangs until the turn
// context expires. Used to exercise the wall-clock turn timeout.
type blockAfterChat struct {
	fakeChat
}

func (c *blockAfterChat) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	exhausted := len(c.queue) == 0
	c.mu.Unlock()
	if exhausted {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.fakeChat.Chat(ctx, req)
}

func TestSupervisor_TurnTimeoutEmitsSingleErrorResponse(t *testing.T) {
	chat := &blockAfterChat{}
	chat.enqueueText(classifyBilling) // the agent call after it never returns

	responses := make(chan *ConversationResponse, 4)
	deps := newTestDeps(chat, nil)
	deps.Config.Runtime.TurnTimeoutSeconds = 1
	s := NewSupervisor("c1", deps, func(resp *ConversationResponse) { responses <- resp })
	s.Start()
	t.Cleanup(s.Stop)

	require.True(t, s.Submit(testTurn("Show my invoices")))

	select {
	case resp := <-responses:
		assert.Equal(t, push.MessageTypeError, resp.MessageType)
		assert.Equal(t, genericErrorText, resp.Text)
		assert.True(t, resp.AgentCompleted)
		assert.Equal(t, "", s.ActiveAgent(), "a timed-out turn must not leave the slot stuck")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the turn-timeout response")
	}

	select {
	case resp := <-responses:
		t.Fatalf("expected exactly one response for the turn, got a second: %q", resp.Text)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSupervisor_RestoreActiveAgentEnablesFastPath(t *testing.T) {
	chat := &fakeChat{}
	h := newSupervisorHarness(t, chat)

	require.True(t, h.supervisor.RestoreActiveAgent("billing"))

	// One agent call only: guard and classifier are skipped
	chat.enqueueText("Welcome back, here are your invoices.")
	h.submit(t, "continue")
	resp := h.wait(t)

	assert.Equal(t, "billing", resp.AgentName)
	assert.Equal(t, 1, chat.callCount())
}

func TestSupervisor_RestoreUnknownAgentIsIgnored(t *testing.T) {
	chat := &fakeChat{}
	h := newSupervisorHarness(t, chat)

	require.True(t, h.supervisor.RestoreActiveAgent("weather"))

	// Full pipeline runs because nothing was restored
	chat.enqueueText(classifyBilling)
	chat.enqueueText("Here are your invoices.")
	h.submit(t, "Show my invoices")
	resp := h.wait(t)

	assert.Equal(t, "billing", resp.AgentName)
	assert.Equal(t, 2, chat.callCount())
}
