package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

// createConversationHandler handles POST /api/v1/conversations.
// Starts the conversation tree and returns 202; the presentation message
// (or restored state on resume) arrives over the push channel.
func (s *Server) createConversationHandler(c *echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	if err := s.conversations.Create(conversationID, req.Resume); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusAccepted, &CreateConversationResponse{
		ConversationID: conversationID,
		Status:         "accepted",
	})
}

// sendMessageHandler handles POST /api/v1/conversations/:id/messages.
// Enqueues the turn and returns 202; the response arrives asynchronously
// over the push channel. The traceparent header, when present, rides
// through the pipeline as opaque bytes.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if len(req.Text) > MaxMessageLength {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum length of %d bytes", MaxMessageLength))
	}

	var traceContext []byte
	if tp := c.Request().Header.Get("traceparent"); tp != "" {
		traceContext = []byte(tp)
	}

	if err := s.conversations.Deliver(conversationID, req.Text, traceContext); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusAccepted, &AcceptedResponse{Status: "accepted"})
}

// terminateConversationHandler handles DELETE /api/v1/conversations/:id.
func (s *Server) terminateConversationHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	s.conversations.Terminate(conversationID)
	return c.JSON(http.StatusAccepted, &AcceptedResponse{Status: "terminating"})
}
