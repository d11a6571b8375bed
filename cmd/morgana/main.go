// Morgana conversational runtime server — provides the HTTP/WebSocket API
// and hosts the per-conversation orchestration trees.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/morgana-runtime/morgana/pkg/api"
	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/conversation"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/mcp"
	"github.com/morgana-runtime/morgana/pkg/metrics"
	"github.com/morgana-runtime/morgana/pkg/push"
	"github.com/morgana-runtime/morgana/pkg/store"
	"github.com/morgana-runtime/morgana/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// listenAddr derives the HTTP listen address from the configured port.
// The HTTP_PORT environment variable overrides it for container setups.
func listenAddr(configuredPort int) string {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		return ":" + port
	}
	return ":" + strconv.Itoa(configuredPort)
}

// warmupMCPServers connects to all enabled MCP servers in parallel.
// Failures are non-fatal: sessions are recreated lazily on first use, so a
// server that is down at boot only degrades the intents that need it.
func warmupMCPServers(ctx context.Context, client *mcp.Client, registry *config.MCPServerRegistry) {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range registry.ServerNames() {
		cfg, err := registry.Get(name)
		if err != nil || !cfg.IsEnabled() {
			continue
		}
		g.Go(func() error {
			if err := client.InitializeServer(gctx, name); err != nil {
				slog.Warn("MCP server warmup failed, will retry lazily",
					"server", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func newStore(ctx context.Context, driver config.StoreDriver) (store.Store, error) {
	switch driver {
	case config.StorePostgres:
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store driver")
		}
		return store.NewPostgres(ctx, dsn)
	default:
		return store.NewMemory(), nil
	}
}

func main() {
	configFile := flag.String("config",
		getEnv("CONFIG_FILE", "./deploy/config/morgana.yaml"),
		"Path to configuration file")
	flag.Parse()

	// Load .env from the config directory
	envPath := filepath.Join(filepath.Dir(*configFile), ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	slog.Info("Starting Morgana", "version", version.Full(), "config", *configFile)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configFile)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	// 2. Persistence store
	st, err := newStore(ctx, cfg.Store.Driver)
	if err != nil {
		slog.Error("Failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}()
	slog.Info("Store initialized", "driver", cfg.Store.Driver)

	// 3. LLM client for the default provider
	providerCfg, err := cfg.LLMProviderRegistry.Default()
	if err != nil {
		slog.Error("Failed to resolve default LLM provider", "error", err)
		os.Exit(1)
	}
	chatClient, err := llm.NewClient(providerCfg)
	if err != nil {
		slog.Error("Failed to initialize LLM client",
			"provider", cfg.LLMProviderRegistry.DefaultName(), "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized",
		"provider", cfg.LLMProviderRegistry.DefaultName(), "model", chatClient.Model())

	// 4. MCP client pool with parallel warmup
	mcpClient := mcp.NewClient(cfg.MCPServerRegistry)
	defer func() {
		if err := mcpClient.Close(); err != nil {
			slog.Error("Error closing MCP client", "error", err)
		}
	}()
	warmupMCPServers(ctx, mcpClient, cfg.MCPServerRegistry)
	if failed := mcpClient.FailedServers(); len(failed) > 0 {
		slog.Warn("Some MCP servers are unavailable", "failed_servers", failed)
	}

	// 5. Push hub and conversation registry
	recorder := metrics.NewRecorder()
	hub := push.NewHub(cfg.Push.WriteTimeout())

	registry := conversation.NewRegistry(&conversation.Deps{
		Config:  cfg,
		Chat:    chatClient,
		MCP:     mcpClient,
		Store:   st,
		Bridge:  hub,
		Agents:  conversation.NewAgentRegistry(),
		Metrics: recorder,
	})

	// 6. HTTP server (non-blocking)
	httpServer := api.NewServer(cfg, registry, hub, st)
	addr := listenAddr(cfg.Server.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: drain conversations first so in-flight turns
	// finish and persist, then stop the HTTP server.
	drainCtx, drainCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout())
	defer drainCancel()
	if err := registry.Shutdown(drainCtx); err != nil {
		slog.Warn("Conversation drain incomplete", "error", err)
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
