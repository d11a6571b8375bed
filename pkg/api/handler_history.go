package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// defaultHistoryLimit bounds the history endpoint when no limit is given.
const defaultHistoryLimit = 100

// historyHandler handles GET /api/v1/conversations/:id/history?limit=.
// Reads go straight to the persistence store; the conversation tree is
// never consulted and need not be alive.
func (s *Server) historyHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	turns, err := s.store.History(c.Request().Context(), conversationID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read history")
	}

	return c.JSON(http.StatusOK, &HistoryResponse{
		ConversationID: conversationID,
		Turns:          turns,
	})
}
