// Package push delivers structured messages and streaming chunks to
// WebSocket clients subscribed to a conversation's channel.
package push

import "time"

// MessageType categorizes a structured message for the client.
type MessageType string

const (
	MessageTypeAssistant    MessageType = "assistant"
	MessageTypePresentation MessageType = "presentation"
	MessageTypeSystem       MessageType = "system"
	MessageTypeError        MessageType = "error"
)

// QuickReply is the wire form of a pre-labeled reply button.
type QuickReply struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Terminal bool   `json:"terminal,omitempty"`
}

// StructuredMessage is the final per-turn payload delivered to clients.
type StructuredMessage struct {
	Type           string       `json:"type"` // always wire type "message"
	ConversationID string       `json:"conversation_id"`
	Text           string       `json:"text"`
	MessageType    MessageType  `json:"message_type"`
	QuickReplies   []QuickReply `json:"quick_replies,omitempty"`
	ErrorReason    string       `json:"error_reason,omitempty"`
	AgentName      string       `json:"agent_name,omitempty"`
	AgentCompleted bool         `json:"agent_completed"`
	Timestamp      string       `json:"timestamp"` // RFC3339Nano
}

// StreamChunkPayload is one transient streaming token. High frequency,
// never retracted; clients reconstruct the full text from the final
// StructuredMessage.
type StreamChunkPayload struct {
	Type           string `json:"type"` // always wire type "stream.chunk"
	ConversationID string `json:"conversation_id"`
	Delta          string `json:"delta"`
	Timestamp      string `json:"timestamp"` // RFC3339Nano
}

// Wire type discriminators.
const (
	WireTypeMessage     = "message"
	WireTypeStreamChunk = "stream.chunk"
)

// ConversationChannel returns the channel name clients subscribe to for a
// conversation's messages. Format: "conversation:{id}".
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "conversation:abc-123"
}

func timestamp() string {
	return time.Now().Format(time.RFC3339Nano)
}
