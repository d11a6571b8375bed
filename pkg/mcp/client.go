// Package mcp provides MCP (Model Context Protocol) client infrastructure
// for connecting to and executing tools on remote MCP servers.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/version"
)

// Client manages MCP SDK sessions for multiple servers. One Client is
// shared process-wide by every conversation; sessions are lazy and
// recreated on transport failure.
// Thread-safe: sessions may be accessed from many conversations at once.
type Client struct {
	registry *config.MCPServerRegistry

	mu            sync.RWMutex
	sessions      map[string]*mcpsdk.ClientSession // server name → session
	failedServers map[string]string                // server name → error message

	// Tool cache, populated on first ListTools per server and invalidated
	// on session recreation.
	toolCache   map[string][]*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	// Per-server mutex for session (re)creation to prevent thundering herd
	reinitMu sync.Map // server name → *sync.Mutex

	logger *slog.Logger
}

// NewClient creates a client pool over the configured server registry
func NewClient(registry *config.MCPServerRegistry) *Client {
	return &Client{
		registry:      registry,
		sessions:      make(map[string]*mcpsdk.ClientSession),
		failedServers: make(map[string]string),
		toolCache:     make(map[string][]*mcpsdk.Tool),
		logger:        slog.With("component", "mcp_client"),
	}
}

// Initialize connects to all enabled MCP servers. Servers that fail to
// connect are recorded and retried lazily on first use; partial
// initialization is acceptable (agents bind whatever tools are reachable).
func (c *Client) Initialize(ctx context.Context) error {
	for _, name := range c.registry.ServerNames() {
		cfg, err := c.registry.Get(name)
		if err != nil || !cfg.IsEnabled() {
			continue
		}
		if err := c.InitializeServer(ctx, name); err != nil {
			c.mu.Lock()
			c.failedServers[name] = err.Error()
			c.mu.Unlock()
			c.logger.Warn("MCP server failed to initialize", "server", name, "error", err)
		}
	}
	return nil
}

// InitializeServer connects to a single MCP server.
// Returns nil if already connected. Used for lazy initialization and recovery.
func (c *Client) InitializeServer(ctx context.Context, name string) error {
	muI, _ := c.reinitMu.LoadOrStore(name, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	return c.initializeServerLocked(ctx, name)
}

// initializeServerLocked performs the actual server initialization.
// Caller must hold the per-server reinitMu lock.
func (c *Client) initializeServerLocked(ctx context.Context, name string) error {
	c.mu.RLock()
	if _, exists := c.sessions[name]; exists {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	serverCfg, err := c.registry.Get(name)
	if err != nil {
		return fmt.Errorf("server %q not found in registry: %w", name, err)
	}
	if !serverCfg.IsEnabled() {
		return fmt.Errorf("server %q is disabled", name)
	}

	transport, err := createTransport(serverCfg.Transport)
	if err != nil {
		return fmt.Errorf("failed to create transport for %q: %w", name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("failed to connect to %q: %w", name, err)
	}

	c.mu.Lock()
	c.sessions[name] = session
	delete(c.failedServers, name)
	c.mu.Unlock()

	c.logger.Info("MCP server connected", "server", name)
	return nil
}

// ListTools returns tools from a specific server. Uses cache if available.
// A missing session is initialized lazily first.
func (c *Client) ListTools(ctx context.Context, name string) ([]*mcpsdk.Tool, error) {
	// Lock ordering: never acquire c.mu while holding toolCacheMu.
	c.toolCacheMu.RLock()
	if cached, ok := c.toolCache[name]; ok {
		c.toolCacheMu.RUnlock()
		return cached, nil
	}
	c.toolCacheMu.RUnlock()

	session, err := c.session(ctx, name)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools from %q: %w", name, err)
	}

	tools := result.Tools
	if tools == nil {
		tools = []*mcpsdk.Tool{}
	}
	c.toolCacheMu.Lock()
	c.toolCache[name] = tools
	c.toolCacheMu.Unlock()

	return tools, nil
}

// CallTool executes a tool call on the specified server.
// At most one retry is attempted after a jittered backoff, recreating the
// session when the failure looks transport-level; if the retry also fails
// the error is returned to the caller.
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]any) (string, bool, error) {
	params := &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	}

	result, err := c.callToolOnce(ctx, server, params)
	if err == nil {
		return extractTextContent(result), result.IsError, nil
	}

	action := ClassifyError(err)
	if action == NoRetry {
		return "", false, err
	}

	c.logger.Info("MCP call failed, retrying",
		"server", server, "tool", tool, "action", action, "error", err)

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return "", false, ctx.Err()
	}

	if action == RetryNewSession {
		if err := c.recreateSession(ctx, server); err != nil {
			return "", false, fmt.Errorf("session recreation failed for %q: %w", server, err)
		}
	}

	result, err = c.callToolOnce(ctx, server, params)
	if err != nil {
		return "", false, fmt.Errorf("retry failed for %q.%s: %w", server, tool, err)
	}
	return extractTextContent(result), result.IsError, nil
}

// callToolOnce performs a single CallTool attempt.
func (c *Client) callToolOnce(ctx context.Context, server string, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	session, err := c.session(ctx, server)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	return session.CallTool(opCtx, params)
}

// session returns the live session for a server, initializing it lazily.
func (c *Client) session(ctx context.Context, name string) (*mcpsdk.ClientSession, error) {
	c.mu.RLock()
	session, exists := c.sessions[name]
	c.mu.RUnlock()
	if exists {
		return session, nil
	}

	if err := c.InitializeServer(ctx, name); err != nil {
		return nil, err
	}

	c.mu.RLock()
	session, exists = c.sessions[name]
	c.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no session for server %q", name)
	}
	return session, nil
}

// recreateSession tears down and recreates the session for a server.
// If two goroutines race into recreation, the second tears down the fresh
// session and creates another; the cost is one extra handshake.
func (c *Client) recreateSession(ctx context.Context, name string) error {
	muI, _ := c.reinitMu.LoadOrStore(name, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, exists := c.sessions[name]; exists {
		_ = session.Close()
		delete(c.sessions, name)
	}
	c.mu.Unlock()

	c.InvalidateToolCache(name)

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()

	return c.initializeServerLocked(reinitCtx, name)
}

// InvalidateToolCache removes the cached tool list for a server,
// forcing the next ListTools call to re-probe it.
func (c *Client) InvalidateToolCache(name string) {
	c.toolCacheMu.Lock()
	delete(c.toolCache, name)
	c.toolCacheMu.Unlock()
}

// HasSession checks if a server has an active session.
func (c *Client) HasSession(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.sessions[name]
	return exists
}

// FailedServers returns the map of servers that failed to initialize.
func (c *Client) FailedServers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]string, len(c.failedServers))
	for k, v := range c.failedServers {
		result[k] = v
	}
	return result
}

// Close shuts down all sessions gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", name, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	c.failedServers = make(map[string]string)

	c.toolCacheMu.Lock()
	c.toolCache = make(map[string][]*mcpsdk.Tool)
	c.toolCacheMu.Unlock()

	return firstErr
}

// extractTextContent flattens an MCP CallToolResult into a single textual
// payload. Non-text content (images, embedded resources) is skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			slog.Debug("MCP tool returned non-text content, skipping",
				"content_type", fmt.Sprintf("%T", content))
		}
	}
	return strings.Join(parts, "\n")
}
