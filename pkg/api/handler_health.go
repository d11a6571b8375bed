package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/morgana-runtime/morgana/pkg/version"
)

// healthHandler handles GET /healthz. Minimal and unauthenticated;
// external dependencies (LLM providers, MCP servers) are deliberately
// excluded so their outages never restart this process.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:              "healthy",
		Version:             version.Full(),
		ActiveConversations: s.conversations.Len(),
	})
}
