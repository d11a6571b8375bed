package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/metrics"
	"github.com/morgana-runtime/morgana/pkg/push"
	"github.com/morgana-runtime/morgana/pkg/tools"
)

type supervisorMsgKind int

const (
	msgTurn supervisorMsgKind = iota
	msgPresentation
	msgRestoreActive
)

type supervisorMsg struct {
	kind      supervisorMsgKind
	turn      *Turn
	agentName string // for msgRestoreActive
}

// Supervisor owns one conversation's turn state machine: the active-agent
// slot, the guard → classifier → router pipeline, and presentation on
// create. It processes at most one turn at a time; messages arriving
// mid-turn queue in the mailbox, which preserves per-conversation causal
// order without locks.
type Supervisor struct {
	conversationID string
	deps           *Deps

	guard      *Guard
	classifier *Classifier
	router     *Router

	// activeAgent is the 0-or-1 intent currently engaged in a multi-turn
	// exchange. Only the supervisor goroutine reads or writes it.
	activeAgent string

	// respond delivers exactly one ConversationResponse per turn back to
	// the manager.
	respond func(*ConversationResponse)

	mailbox  chan supervisorMsg
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger *slog.Logger
}

// NewSupervisor builds the supervisor subtree (guard, classifier, router)
// for one conversation. respond is called once per processed turn and
// once per presentation.
func NewSupervisor(conversationID string, deps *Deps, respond func(*ConversationResponse)) *Supervisor {
	guardPrompt, err := deps.Config.PromptRegistry.Get(config.PromptGuard)
	if err != nil {
		guardPrompt = ""
	}
	classifierPrompt, err := deps.Config.PromptRegistry.Get(config.PromptClassifier)
	if err != nil {
		classifierPrompt = ""
	}

	return &Supervisor{
		conversationID: conversationID,
		deps:           deps,
		guard:          NewGuard(deps.Config.Guard, guardPrompt, deps.Chat, deps.Metrics),
		classifier:     NewClassifier(deps.Config.IntentRegistry, classifierPrompt, deps.Chat, deps.Metrics),
		router:         NewRouter(conversationID, deps),
		respond:        respond,
		mailbox:        make(chan supervisorMsg, deps.Config.Runtime.MailboxSize),
		stopCh:         make(chan struct{}),
		logger: slog.With("component", "supervisor",
			"conversation_id", conversationID),
	}
}

// Start begins the supervisor loop in a goroutine.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop signals the loop to exit and waits for the in-flight turn to
// settle. Safe to call multiple times.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Submit enqueues one user turn. Returns false when the supervisor is
// stopping and will not process the turn.
func (s *Supervisor) Submit(turn *Turn) bool {
	return s.enqueue(supervisorMsg{kind: msgTurn, turn: turn})
}

// GeneratePresentation enqueues the once-per-create greeting.
func (s *Supervisor) GeneratePresentation() bool {
	return s.enqueue(supervisorMsg{kind: msgPresentation})
}

// RestoreActiveAgent enqueues restoration of a persisted active agent on
// conversation resume.
func (s *Supervisor) RestoreActiveAgent(name string) bool {
	return s.enqueue(supervisorMsg{kind: msgRestoreActive, agentName: name})
}

func (s *Supervisor) enqueue(msg supervisorMsg) bool {
	select {
	case <-s.stopCh:
		return false
	case s.mailbox <- msg:
		return true
	}
}

func (s *Supervisor) run() {
	defer s.wg.Done()
	s.logger.Debug("Supervisor started")

	for {
		select {
		case <-s.stopCh:
			s.logger.Debug("Supervisor stopped")
			return
		case msg := <-s.mailbox:
			s.dispatch(msg)
		}
	}
}

// dispatch processes one mailbox message to completion. A panic anywhere
// in the subtree is contained here: the turn gets a generic error
// response and the active-agent slot is cleared, so the next turn starts
// from a clean pipeline.
func (s *Supervisor) dispatch(msg supervisorMsg) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in supervisor subtree", "panic", fmt.Sprint(r))
			s.activeAgent = ""
			if msg.kind == msgTurn {
				s.respond(&ConversationResponse{
					Text:        genericErrorText,
					MessageType: push.MessageTypeError,
					ErrorReason: "internal_error",
					Turn:        msg.turn,
				})
			}
		}
	}()

	switch msg.kind {
	case msgTurn:
		s.handleTurn(msg.turn)
	case msgPresentation:
		s.handlePresentation()
	case msgRestoreActive:
		s.handleRestore(msg.agentName)
	}
}

// handleTurn runs the state machine for one user message. The awaiting
// states of the design collapse into sequential code here; the mailbox
// provides the at-most-one-in-flight guarantee.
func (s *Supervisor) handleTurn(turn *Turn) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.Runtime.TurnTimeout())
	defer cancel()

	// Fast path: an engaged agent gets the turn directly, skipping
	// guard, classification, and routing.
	if s.activeAgent != "" {
		if agent, ok := s.router.Cached(s.activeAgent); ok {
			ar := agent.Handle(ctx, turn)
			s.finishAgentTurn(turn, agent.Intent(), ar, start)
			return
		}
		// Slot names an agent missing from the cache. Broken invariant;
		// clear the slot and run the full pipeline.
		s.logger.Error("Active agent missing from router cache, clearing slot",
			"agent", s.activeAgent)
		s.activeAgent = ""
	}

	verdict := s.guard.Check(ctx, turn.Text)
	if !verdict.Compliant {
		s.deps.Metrics.ObserveTurn("", metrics.OutcomeGuardViolation, time.Since(start))
		s.respond(&ConversationResponse{
			Text:        guardViolationText,
			MessageType: push.MessageTypeError,
			ErrorReason: "guard_violation:" + verdict.Violation,
			Turn:        turn,
		})
		return
	}

	classification := s.classifier.Classify(ctx, turn.Text)

	ar, agentName, found := s.router.Route(ctx, turn, classification)
	if !found {
		// Capability unknown: the slot stays untouched.
		s.deps.Metrics.ObserveTurn(classification.Intent, metrics.OutcomeUnknownIntent, time.Since(start))
		s.respond(&ConversationResponse{
			Text:         capabilityUnknownText,
			MessageType:  push.MessageTypeSystem,
			QuickReplies: s.intentQuickReplies(),
			Turn:         turn,
		})
		return
	}

	s.finishAgentTurn(turn, agentName, ar, start)
}

// finishAgentTurn updates the active-agent slot from the agent's verdict
// and emits the turn's single ConversationResponse.
func (s *Supervisor) finishAgentTurn(turn *Turn, agentName string, ar *AgentResponse, start time.Time) {
	if ar.IsCompleted {
		s.activeAgent = ""
	} else {
		s.activeAgent = agentName
	}

	outcome := metrics.OutcomeCompleted
	messageType := push.MessageTypeAssistant
	errorReason := ""
	if ar.Text == genericErrorText {
		outcome = metrics.OutcomeError
		messageType = push.MessageTypeError
		errorReason = "agent_error"
	} else if !ar.IsCompleted {
		outcome = metrics.OutcomeInteractive
	}
	s.deps.Metrics.ObserveTurn(agentName, outcome, time.Since(start))

	s.respond(&ConversationResponse{
		Text:           ar.Text,
		MessageType:    messageType,
		QuickReplies:   ar.QuickReplies,
		AgentName:      agentName,
		AgentCompleted: ar.IsCompleted,
		ErrorReason:    errorReason,
		Turn:           turn,
	})
}

// presentationVerdict is the JSON shape the presentation LLM must produce.
type presentationVerdict struct {
	Message      string `json:"message"`
	QuickReplies []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"quickReplies"`
}

// handlePresentation emits the greeting exactly once per conversation
// create. LLM or parse failure falls back to the static message with
// quick replies derived from the intent registry.
func (s *Supervisor) handlePresentation() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.Runtime.TurnTimeout())
	defer cancel()

	text := staticPresentation
	replies := s.intentQuickReplies()

	if prompt, err := s.deps.Config.PromptRegistry.Get(config.PromptPresentation); err == nil {
		if resp, err := s.deps.Chat.Chat(ctx, &llm.Request{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: prompt},
				{Role: llm.RoleUser, Content: "Introduce yourself."},
			},
		}); err == nil {
			s.deps.Metrics.LLMCall("presentation", true, resp.Usage.InputTokens, resp.Usage.OutputTokens)
			var verdict presentationVerdict
			if decodeErr := llm.DecodeLenient(resp.Text, &verdict); decodeErr == nil && verdict.Message != "" {
				text = verdict.Message
				if len(verdict.QuickReplies) > 0 {
					replies = replies[:0]
					for i, qr := range verdict.QuickReplies {
						value := qr.Value
						if value == "" {
							value = qr.Label
						}
						replies = append(replies, tools.QuickReply{
							ID:    fmt.Sprintf("qr-%d", i+1),
							Label: qr.Label,
							Value: value,
						})
					}
				}
			} else {
				s.logger.Warn("Presentation output unparseable, using static fallback")
			}
		} else {
			s.deps.Metrics.LLMCall("presentation", false, 0, 0)
			s.logger.Warn("Presentation call failed, using static fallback", "error", err)
		}
	}

	s.respond(&ConversationResponse{
		Text:         text,
		MessageType:  push.MessageTypePresentation,
		QuickReplies: replies,
	})
}

// handleRestore re-engages the persisted active agent on resume. The
// agent instance is resolved immediately so the slot never names an
// agent absent from the router cache.
func (s *Supervisor) handleRestore(name string) {
	if name == "" {
		return
	}
	if _, ok := s.router.resolve(name); !ok {
		s.logger.Warn("Cannot restore unknown active agent", "agent", name)
		return
	}
	s.activeAgent = strings.ToLower(name)
	s.logger.Info("Active agent restored", "agent", s.activeAgent)
}

// intentQuickReplies derives one quick reply per configured intent that
// declares a label, used for presentation and capability-unknown replies.
func (s *Supervisor) intentQuickReplies() []tools.QuickReply {
	var replies []tools.QuickReply
	for _, intent := range s.deps.Config.IntentRegistry.GetAll() {
		if intent.Label == "" {
			continue
		}
		value := intent.DefaultValue
		if value == "" {
			value = intent.Label
		}
		replies = append(replies, tools.QuickReply{
			ID:    "intent-" + strings.ToLower(intent.Name),
			Label: intent.Label,
			Value: value,
		})
	}
	return replies
}

// ActiveAgent exposes the slot for the manager's error recovery and for
// tests. Only meaningful between turns.
func (s *Supervisor) ActiveAgent() string {
	return s.activeAgent
}
