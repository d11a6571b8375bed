package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morgana-runtime/morgana/pkg/push"
)

type managerMsgKind int

const (
	mgrCreate managerMsgKind = iota
	mgrUser
	mgrResponse
	mgrTerminate
)

type managerMsg struct {
	kind   managerMsgKind
	resume bool
	turn   *Turn
	resp   *ConversationResponse
}

// Manager owns one conversation's lifecycle: it spawns the supervisor
// tree, arms the idle timer on every user turn, ships supervisor replies
// to the push bridge, and appends turns to the persistence store. When
// the manager stops, the whole tree is gone; only persisted history
// survives.
type Manager struct {
	conversationID string
	deps           *Deps

	supervisor *Supervisor
	mailbox    chan managerMsg
	idleTimer  *time.Timer

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// onStop is the registry's removal callback, invoked exactly once
	// after the tree is torn down.
	onStop func(conversationID string)

	logger *slog.Logger
}

// NewManager creates a manager and its supervisor subtree. Call Start to
// begin processing.
func NewManager(conversationID string, deps *Deps, onStop func(string)) *Manager {
	m := &Manager{
		conversationID: conversationID,
		deps:           deps,
		mailbox:        make(chan managerMsg, deps.Config.Runtime.MailboxSize),
		stopCh:         make(chan struct{}),
		onStop:         onStop,
		logger: slog.With("component", "manager",
			"conversation_id", conversationID),
	}
	m.supervisor = NewSupervisor(conversationID, deps, m.deliverResponse)
	return m
}

// Start launches the manager and supervisor loops.
func (m *Manager) Start() {
	m.supervisor.Start()
	m.wg.Add(1)
	go m.run()
	m.deps.Metrics.ConversationStarted()
	m.logger.Info("Conversation started")
}

// Stop tears the tree down and waits for it. Safe to call multiple times.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Create enqueues conversation creation: presentation for fresh
// conversations, active-agent restoration for resumed ones.
func (m *Manager) Create(resume bool) bool {
	return m.enqueue(managerMsg{kind: mgrCreate, resume: resume})
}

// UserMessage enqueues one user turn.
func (m *Manager) UserMessage(turn *Turn) bool {
	return m.enqueue(managerMsg{kind: mgrUser, turn: turn})
}

// Terminate enqueues an explicit stop request.
func (m *Manager) Terminate() bool {
	return m.enqueue(managerMsg{kind: mgrTerminate})
}

// deliverResponse is the supervisor's reply path; it feeds responses back
// into the manager mailbox so persistence and push delivery happen on the
// manager's serial dispatch.
func (m *Manager) deliverResponse(resp *ConversationResponse) {
	m.enqueue(managerMsg{kind: mgrResponse, resp: resp})
}

func (m *Manager) enqueue(msg managerMsg) bool {
	select {
	case <-m.stopCh:
		return false
	case m.mailbox <- msg:
		return true
	}
}

func (m *Manager) run() {
	defer m.wg.Done()
	defer m.teardown()

	m.idleTimer = time.NewTimer(m.deps.Config.Runtime.IdleTimeout())
	defer m.idleTimer.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.idleTimer.C:
			m.logger.Info("Idle timeout, terminating conversation")
			m.stopOnce.Do(func() { close(m.stopCh) })
			return
		case msg := <-m.mailbox:
			switch msg.kind {
			case mgrCreate:
				m.handleCreate(msg.resume)
			case mgrUser:
				m.resetIdleTimer()
				if !m.supervisor.Submit(msg.turn) {
					m.logger.Warn("Supervisor rejected turn during shutdown")
				}
			case mgrResponse:
				m.handleResponse(msg.resp)
			case mgrTerminate:
				m.logger.Info("Conversation terminated by request")
				m.stopOnce.Do(func() { close(m.stopCh) })
				return
			}
		}
	}
}

// teardown stops the subtree and notifies the registry. Runs exactly once
// as the manager goroutine exits.
func (m *Manager) teardown() {
	m.supervisor.Stop()
	m.deps.Metrics.ConversationStopped()
	if m.onStop != nil {
		m.onStop(m.conversationID)
	}
	m.logger.Info("Conversation stopped")
}

func (m *Manager) handleCreate(resume bool) {
	if !resume {
		m.supervisor.GeneratePresentation()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name, ok, err := m.deps.Store.LastActiveAgent(ctx, m.conversationID)
	if err != nil {
		m.logger.Warn("Failed to look up last active agent", "error", err)
		return
	}
	if ok {
		m.supervisor.RestoreActiveAgent(name)
	}
}

// handleResponse ships one supervisor reply to the push bridge and, for
// turn responses, appends the exchange to the store. Store failures are
// logged, never surfaced: the user already has their answer.
func (m *Manager) handleResponse(resp *ConversationResponse) {
	m.deps.Bridge.SendStructured(m.conversationID, push.StructuredMessage{
		Text:           resp.Text,
		MessageType:    resp.MessageType,
		QuickReplies:   pushQuickReplies(resp.QuickReplies),
		ErrorReason:    resp.ErrorReason,
		AgentName:      resp.AgentName,
		AgentCompleted: resp.AgentCompleted,
	})

	if resp.Turn == nil {
		return
	}

	activeAfter := ""
	if resp.AgentName != "" && !resp.AgentCompleted {
		activeAfter = resp.AgentName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.deps.Store.SaveTurn(ctx, m.conversationID, resp.Turn.Text, resp.Text, activeAfter); err != nil {
		m.logger.Error("Failed to persist turn", "error", err)
	}
}

func (m *Manager) resetIdleTimer() {
	if !m.idleTimer.Stop() {
		select {
		case <-m.idleTimer.C:
		default:
		}
	}
	m.idleTimer.Reset(m.deps.Config.Runtime.IdleTimeout())
}
