package api

// MaxMessageLength caps the user message body. Longer messages are
// rejected before they reach the pipeline.
const MaxMessageLength = 32_000

// CreateConversationRequest is the body for POST /api/v1/conversations.
type CreateConversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Resume         bool   `json:"resume"`
}

// SendMessageRequest is the body for POST /api/v1/conversations/:id/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}
