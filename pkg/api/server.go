// Package api exposes the conversation runtime over HTTP: ingress
// operations, the WebSocket push endpoint, history, health, and metrics.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/conversation"
	"github.com/morgana-runtime/morgana/pkg/push"
	"github.com/morgana-runtime/morgana/pkg/store"
)

// Server is the HTTP ingress for the runtime. All conversation processing
// is asynchronous: message endpoints return 202 and the answer arrives on
// the push channel.
type Server struct {
	cfg           *config.Config
	conversations *conversation.Registry
	hub           *push.Hub
	store         store.Store

	echo *echo.Echo
	http *http.Server
}

// NewServer wires routes and middleware. Call Start to begin serving.
func NewServer(cfg *config.Config, conversations *conversation.Registry, hub *push.Hub, st store.Store) *Server {
	s := &Server{
		cfg:           cfg,
		conversations: conversations,
		hub:           hub,
		store:         st,
	}

	e := echo.New()
	e.Use(securityHeaders())

	api := e.Group("/api/v1")
	api.POST("/conversations", s.createConversationHandler)
	api.POST("/conversations/:id/messages", s.sendMessageHandler)
	api.DELETE("/conversations/:id", s.terminateConversationHandler)
	api.GET("/conversations/:id/history", s.historyHandler)

	e.GET("/ws", s.wsHandler)
	e.GET("/healthz", s.healthHandler)
	e.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	s.echo = e
	return s
}

// Start serves HTTP on addr. Blocks until Shutdown or a listen error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.echo}
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
