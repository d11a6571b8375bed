package api

import "github.com/morgana-runtime/morgana/pkg/store"

// CreateConversationResponse is returned with 202 on accept.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// AcceptedResponse acknowledges an asynchronous operation.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// HistoryResponse is the persisted turn log for one conversation.
type HistoryResponse struct {
	ConversationID string       `json:"conversation_id"`
	Turns          []store.Turn `json:"turns"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	ActiveConversations int    `json:"active_conversations"`
}
