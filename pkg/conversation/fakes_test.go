package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/push"
	"github.com/morgana-runtime/morgana/pkg/store"
	"github.com/morgana-runtime/morgana/pkg/tools"
)

// fakeChat is a scripted ChatClient: replies are popped in call order.
// An exhausted script answers with plain "ok" so incidental calls never
// nil-panic a test.
type fakeChat struct {
	mu    sync.Mutex
	queue []fakeReply
	calls []*llm.Request
}

type fakeReply struct {
	resp *llm.Response
	err  error
}

func (f *fakeChat) Chat(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.queue) == 0 {
		return &llm.Response{Text: "ok"}, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func (f *fakeChat) Model() string { return "fake-model" }

func (f *fakeChat) enqueueText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{resp: &llm.Response{Text: text}})
}

func (f *fakeChat) enqueueToolCalls(calls ...llm.ToolCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{resp: &llm.Response{ToolCalls: calls}})
}

func (f *fakeChat) enqueueError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{err: err})
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeBridge records every push delivery and signals structured messages
// on a channel so tests can wait for asynchronous turns to settle.
type fakeBridge struct {
	mu         sync.Mutex
	structured []push.StructuredMessage
	chunks     []string
	notify     chan push.StructuredMessage
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{notify: make(chan push.StructuredMessage, 32)}
}

func (b *fakeBridge) SendStructured(_ string, msg push.StructuredMessage) {
	b.mu.Lock()
	b.structured = append(b.structured, msg)
	b.mu.Unlock()
	b.notify <- msg
}

func (b *fakeBridge) SendStreamChunk(_ string, delta string) {
	b.mu.Lock()
	b.chunks = append(b.chunks, delta)
	b.mu.Unlock()
}

func (b *fakeBridge) wait(t *testing.T) push.StructuredMessage {
	t.Helper()
	select {
	case msg := <-b.notify:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a structured message")
		return push.StructuredMessage{}
	}
}

// testConfig builds a minimal two-intent configuration. The guard and
// presentation prompts are empty so their LLM stages stay out of the
// scripted call order unless a test opts in.
func testConfig() *config.Config {
	return &config.Config{
		Runtime: config.RuntimeConfig{
			IdleTimeoutSeconds: 900,
			TurnTimeoutSeconds: 5,
			InteractiveToken:   "#INT#",
			MailboxSize:        16,
		},
		Normalization: config.NormalizationConfig{
			MinSubstringLength: 4,
			SimilarityRatio:    0.3,
		},
		Guard: config.GuardConfig{
			ProfanityTerms: []config.ProfanityTerm{
				{Term: "stupid", Category: "insult"},
			},
		},
		IntentRegistry: config.NewIntentRegistry([]config.IntentConfig{
			{
				Name:         "billing",
				Description:  "Invoices, payments, and billing questions",
				Label:        "Billing",
				DefaultValue: "Show my invoices",
				Prompt:       "You are the billing agent.",
				SharedVars:   []string{"userId"},
			},
			{
				Name:        "contract",
				Description: "Contract lookups and changes",
				Label:       "Contracts",
				Prompt:      "You are the contract agent.",
				SharedVars:  []string{"userId"},
			},
		}),
		PromptRegistry: config.NewPromptRegistry(config.PromptsYAML{
			Morgana:    "You are Morgana.",
			Classifier: "Classify the user message into one of the intents.",
			Summarizer: "Summarize the conversation.",
		}),
		MCPServerRegistry:   config.NewMCPServerRegistry(nil),
		LLMProviderRegistry: config.NewLLMProviderRegistry(config.LLMConfig{}),
	}
}

func newTestDeps(chat llm.ChatClient, bridge Bridge) *Deps {
	return &Deps{
		Config: testConfig(),
		Chat:   chat,
		Store:  store.NewMemory(),
		Bridge: bridge,
		Agents: NewAgentRegistry(),
	}
}

const classifyBilling = `{"intent":"billing","confidence":0.9}`

// promptsWithPresentation returns the test prompts plus a presentation
// prompt, opting the supervisor into the LLM-driven greeting.
func promptsWithPresentation() *config.PromptRegistry {
	return config.NewPromptRegistry(config.PromptsYAML{
		Morgana:      "You are Morgana.",
		Classifier:   "Classify the user message into one of the intents.",
		Presentation: "Introduce yourself as JSON.",
		Summarizer:   "Summarize the conversation.",
	})
}

func toolCallSetContext(name, value string) llm.ToolCall {
	return llm.ToolCall{
		ID:        "call-ctx",
		Name:      tools.ToolSetContextVariable,
		Arguments: fmt.Sprintf(`{"name":%q,"value":%q}`, name, value),
	}
}
