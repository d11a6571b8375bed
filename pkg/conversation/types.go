// Package conversation implements the per-conversation orchestration core:
// an actor-style tree (Manager → Supervisor → Guard/Classifier/Router →
// Agents) with serial per-conversation dispatch, multi-turn active-agent
// state, shared context broadcast, and partial-failure tolerance.
package conversation

import (
	"time"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/metrics"
	"github.com/morgana-runtime/morgana/pkg/push"
	"github.com/morgana-runtime/morgana/pkg/store"
	"github.com/morgana-runtime/morgana/pkg/tools"
)

// Turn is one user message travelling through the pipeline.
type Turn struct {
	ConversationID string
	Text           string
	ReceivedAt     time.Time

	// TraceContext is an opaque tracing token propagated through the
	// pipeline unchanged. The core never inspects it.
	TraceContext []byte
}

// Classification is the intent classifier's verdict for one turn.
type Classification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AgentResponse is what an agent returns for one turn.
type AgentResponse struct {
	Text         string
	IsCompleted  bool
	QuickReplies []tools.QuickReply
}

// ConversationResponse is the Supervisor's per-turn result, shipped by the
// Manager to the push bridge. Exactly one is emitted per turn.
type ConversationResponse struct {
	Text           string
	MessageType    push.MessageType
	QuickReplies   []tools.QuickReply
	AgentName      string
	AgentCompleted bool
	ErrorReason    string

	// Turn is the user message this response answers; nil for
	// presentation messages, which answer no turn.
	Turn *Turn
}

// Bridge is the push collaborator contract: persistent server → client
// delivery of structured messages and streaming chunks. Implemented by
// push.Hub.
type Bridge interface {
	SendStructured(conversationID string, msg push.StructuredMessage)
	SendStreamChunk(conversationID, delta string)
}

// Deps bundles the process-wide collaborators every conversation tree
// shares. All fields are built once at start and read-only afterwards.
type Deps struct {
	Config  *config.Config
	Chat    llm.ChatClient
	MCP     tools.MCPCaller
	Store   store.Store
	Bridge  Bridge
	Agents  *AgentRegistry
	Metrics *metrics.Recorder
}

// User-visible fallback texts. Kept as constants so tests can assert on
// them without duplicating strings.
const (
	genericErrorText      = "Sorry, something went wrong while processing your message. Please try again."
	guardViolationText    = "I can't help with that. Please rephrase your message."
	capabilityUnknownText = "I'm not able to help with that yet. Here is what I can do:"
	staticPresentation    = "Hi, I'm Morgana. How can I help you today?"
)

func pushQuickReplies(replies []tools.QuickReply) []push.QuickReply {
	if len(replies) == 0 {
		return nil
	}
	out := make([]push.QuickReply, 0, len(replies))
	for _, qr := range replies {
		out = append(out, push.QuickReply{
			ID:       qr.ID,
			Label:    qr.Label,
			Value:    qr.Value,
			Terminal: qr.Terminal,
		})
	}
	return out
}
