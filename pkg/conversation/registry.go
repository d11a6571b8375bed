package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry is the process-wide map of live conversations. It creates
// managers on demand, routes ingress operations to them, and drains them
// all on shutdown.
type Registry struct {
	deps *Deps

	mu       sync.RWMutex
	managers map[string]*Manager
	closed   bool

	logger *slog.Logger
}

// NewRegistry creates an empty conversation registry.
func NewRegistry(deps *Deps) *Registry {
	return &Registry{
		deps:     deps,
		managers: make(map[string]*Manager),
		logger:   slog.With("component", "conversation_registry"),
	}
}

// Create starts a conversation tree if absent and issues the create
// operation (presentation or resume). Creating an already-live
// conversation is a no-op, matching at-most-once create semantics.
func (r *Registry) Create(conversationID string, resume bool) error {
	mgr, created, err := r.manager(conversationID)
	if err != nil {
		return err
	}
	if created {
		mgr.Create(resume)
	}
	return nil
}

// Deliver enqueues one user message, creating the conversation implicitly
// on first contact.
func (r *Registry) Deliver(conversationID, text string, traceContext []byte) error {
	mgr, _, err := r.manager(conversationID)
	if err != nil {
		return err
	}
	turn := &Turn{
		ConversationID: conversationID,
		Text:           text,
		ReceivedAt:     time.Now(),
		TraceContext:   traceContext,
	}
	if !mgr.UserMessage(turn) {
		return fmt.Errorf("conversation %s is shutting down", conversationID)
	}
	return nil
}

// Terminate requests an explicit stop. Unknown conversations are a no-op.
func (r *Registry) Terminate(conversationID string) {
	r.mu.RLock()
	mgr, ok := r.managers[conversationID]
	r.mu.RUnlock()
	if ok {
		mgr.Terminate()
	}
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// Shutdown terminates every live conversation and waits for the trees to
// drain, bounded by ctx.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	managers := make([]*Manager, 0, len(r.managers))
	for _, mgr := range r.managers {
		managers = append(managers, mgr)
	}
	r.mu.Unlock()

	r.logger.Info("Draining conversations", "count", len(managers))

	done := make(chan struct{})
	go func() {
		for _, mgr := range managers {
			mgr.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("conversation drain interrupted: %w", ctx.Err())
	}
}

// manager returns the live manager for a conversation, creating and
// starting one when absent.
func (r *Registry) manager(conversationID string) (*Manager, bool, error) {
	if conversationID == "" {
		return nil, false, fmt.Errorf("conversation id cannot be empty")
	}

	r.mu.RLock()
	mgr, ok := r.managers[conversationID]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return mgr, false, nil
	}
	if closed {
		return nil, false, fmt.Errorf("registry is shutting down")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if mgr, ok := r.managers[conversationID]; ok {
		return mgr, false, nil
	}
	if r.closed {
		return nil, false, fmt.Errorf("registry is shutting down")
	}

	mgr = NewManager(conversationID, r.deps, r.remove)
	r.managers[conversationID] = mgr
	mgr.Start()
	return mgr, true, nil
}

// remove is the manager teardown callback.
func (r *Registry) remove(conversationID string) {
	r.mu.Lock()
	delete(r.managers, conversationID)
	r.mu.Unlock()
}
