package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emilhart/coxswain/modelkit"
)

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateTurnRunning      SessionState = "turn_running"
	StateStepRunning      SessionState = "step_running"
	StateAwaitingApproval SessionState = "awaiting_approval"
	StateClosed           SessionState = "closed"
)

// TurnStatus is the outcome of one RunTurn call.
type TurnStatus string

const (
	TurnOK        TurnStatus = "ok"
	TurnError     TurnStatus = "error"
	TurnCancelled TurnStatus = "cancelled"
)

// TurnResult is returned by RunTurn. A turn always resolves: with a
// final answer, a degraded fallback answer at the step limit, an error
// status, or a cancelled status.
type TurnResult struct {
	FinalText    string
	Status       TurnStatus
	ErrorMessage string
	Usage        modelkit.Usage
}

// ToolOutput is the payload a tool returns on completion.
type ToolOutput struct {
	Parts   []string
	IsError bool
}

// ToolInvoker executes tool calls on behalf of the session. Tools may
// mutate external state, so the session always runs the approval gate
// and repetition guard before Invoke. Schema validation of the input
// belongs to the invoker, not the session.
type ToolInvoker interface {
	Definitions() []modelkit.ToolDefinition
	Invoke(ctx context.Context, name string, input json.RawMessage) (*ToolOutput, error)
}

// ObservationStatus classifies a tool execution result.
type ObservationStatus string

const (
	ObservationSuccess   ObservationStatus = "success"
	ObservationError     ObservationStatus = "error"
	ObservationDenied    ObservationStatus = "denied"
	ObservationCancelled ObservationStatus = "cancelled"
)

// Observation is the recorded result of executing one action. It is
// appended to history as a tool message correlated by CallID.
type Observation struct {
	CallID string            `json:"call_id"`
	Tool   string            `json:"tool"`
	Status ObservationStatus `json:"status"`
	Text   string            `json:"text"`
}

// stepLimitFallback is the degraded final answer used when a turn hits
// the step limit without the model producing one.
const stepLimitFallback = "I reached the step limit for this turn before producing a final answer. The work completed so far is recorded in the conversation."

// Session drives a multi-turn dialogue between a user and a model that
// can invoke tools. History is exclusively owned by the session; hooks,
// events, and sinks receive copies. Turns are strictly serialized: a
// second RunTurn while one is in flight is rejected, not queued.
type Session struct {
	id        string
	caller    modelkit.Caller
	tools     ToolInvoker
	cfg       SessionConfig
	profile   modelkit.Profile
	logger    *slog.Logger
	emitter   *EventEmitter
	history   *HistoryEmitter
	gate      *ApprovalGate
	approver  Approver
	guard     *RepetitionGuard
	counter   *TokenCounter
	compactor *Compactor

	// set during construction, before the hook runner is built
	primaryHooks Hooks
	middleware   []Hooks
	assessor     RiskAssessor
	sinks        []Sink
	hooks        *hookRunner

	mu       sync.Mutex
	state    SessionState
	messages []modelkit.Message
	turn     int
	usage    modelkit.Usage
	steering []string
}

// Option customizes a session at creation time.
type Option func(*Session)

// WithLogger sets the session's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithHooks sets the primary hook set. Its handlers fire before any
// middleware handlers for the same event.
func WithHooks(h Hooks) Option {
	return func(s *Session) { s.primaryHooks = h }
}

// WithMiddleware appends middleware hook sets in registration order.
func WithMiddleware(sets ...Hooks) Option {
	return func(s *Session) { s.middleware = append(s.middleware, sets...) }
}

// WithSinks attaches history sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sinks...) }
}

// WithApprover sets the decision source consulted when the risk policy
// asks for approval. Without one, every ask is denied.
func WithApprover(a Approver) Option {
	return func(s *Session) { s.approver = a }
}

// WithRiskAssessor sets the risk policy applied to every action. Without
// one, every action is allowed.
func WithRiskAssessor(assess RiskAssessor) Option {
	return func(s *Session) { s.assessor = assess }
}

// NewSession creates a session. The caller is required; tools may be
// nil for a conversation-only session.
func NewSession(caller modelkit.Caller, tools ToolInvoker, cfg *SessionConfig, opts ...Option) *Session {
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}
	cfgCopy := *cfg
	cfgCopy.applyDefaults()

	s := &Session{
		id:     uuid.NewString(),
		caller: caller,
		tools:  tools,
		cfg:    cfgCopy,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", s.id)

	profile, warning := modelkit.ResolveProfile(cfgCopy.Provider, cfgCopy.Model, cfgCopy.ProfileOverrides)
	if warning != "" {
		s.logger.Warn("model profile resolution", "warning", warning)
	}
	s.profile = profile

	s.emitter = NewEventEmitter(cfgCopy.EventBufferSize)
	s.history = NewHistoryEmitter(s.sinks, s.logger)
	s.gate = NewApprovalGate(s.assessor)
	s.guard = NewRepetitionGuard(cfgCopy.RepetitionThreshold)
	s.counter = NewTokenCounter(cfgCopy.Model)
	s.compactor = NewCompactor(caller, s.logger)
	s.hooks = newHookRunner(s.primaryHooks, s.middleware, s.logger)

	// The system prompt is always the first message and is never
	// removed except by compaction, which keeps it and replaces the
	// rest.
	s.messages = []modelkit.Message{modelkit.SystemMessage(cfgCopy.SystemPrompt)}

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Usage returns accumulated token usage for the whole session,
// including compaction calls.
func (s *Session) Usage() modelkit.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// History returns a copy of the conversation history.
func (s *Session) History() []modelkit.Message {
	return s.snapshotHistory()
}

// Events returns the live event stream. The channel is closed when the
// session is closed.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// RunTurn runs one user input to completion. It returns
// ErrTurnInProgress if a turn is already running and ErrSessionClosed
// after Close.
func (s *Session) RunTurn(ctx context.Context, input string) (*TurnResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StateIdle:
	default:
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	s.state = StateTurnRunning
	s.turn++
	turn := s.turn
	s.messages = append(s.messages, modelkit.UserMessage(input))
	s.mu.Unlock()

	s.emit(EventSessionStatus, map[string]any{"state": string(StateTurnRunning)})
	s.hooks.turnStart(ctx, s.id, turn, input)
	s.emit(EventTurnStart, map[string]any{"turn": turn, "input": input})
	s.record(ctx, HistoryEvent{Type: HistoryTurnStart, Turn: turn, Role: "user", Content: input})
	s.emitContextUsage(turn, 0)

	result := s.runSteps(ctx, turn)

	s.mu.Lock()
	if s.state != StateClosed {
		s.state = StateIdle
	}
	s.mu.Unlock()
	s.emit(EventSessionStatus, map[string]any{"state": string(StateIdle)})

	return result, nil
}

func (s *Session) runSteps(ctx context.Context, turn int) *TurnResult {
	var turnUsage modelkit.Usage
	pendingWarning := false

	for step := 1; step <= s.cfg.MaxSteps; step++ {
		s.setState(StateStepRunning)

		if pendingWarning {
			s.appendMessage(modelkit.SystemMessage(s.guard.Warning()))
			s.emit(EventLoopWarning, map[string]any{"turn": turn, "step": step})
			pendingWarning = false
		}

		s.drainSteering(ctx, turn, step)

		s.maybeCompact(ctx, turn, step)
		s.emitContextUsage(turn, step)

		var defs []modelkit.ToolDefinition
		if s.tools != nil {
			defs = s.tools.Definitions()
		}
		req := modelkit.BuildRequest(s.profile, s.cfg.Provider, s.cfg.Model, s.snapshotHistory(), defs)

		resp, err := s.caller.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return &TurnResult{Status: TurnCancelled, ErrorMessage: ctx.Err().Error(), Usage: turnUsage}
			}
			s.logger.Error("model call failed", "turn", turn, "step", step, "error", err)
			s.emit(EventError, map[string]any{"turn": turn, "step": step, "error": err.Error()})
			s.record(ctx, HistoryEvent{Type: HistoryError, Turn: turn, Step: step, Content: err.Error()})
			return &TurnResult{Status: TurnError, ErrorMessage: err.Error(), Usage: turnUsage}
		}
		if resp.Usage != nil {
			u := resp.Usage.Normalized()
			turnUsage = turnUsage.Add(u)
			s.addUsage(u)
		}

		parsed := ParseAssistant(resp.Content)
		actions := parsed.Actions
		if resp.HasToolCalls() {
			actions = make([]Action, len(resp.ToolCalls))
			for i, tc := range resp.ToolCalls {
				actions[i] = Action{CallID: tc.ID, Tool: tc.Name, Input: tc.Arguments}
			}
		}

		s.appendMessage(modelkit.AssistantMessage(resp.Content, resp.ToolCalls...))
		s.record(ctx, HistoryEvent{Type: HistoryAssistant, Turn: turn, Step: step, Role: "assistant", Content: resp.Content})
		if text := strings.TrimSpace(parsed.Text); text != "" || parsed.Thinking != "" {
			payload := map[string]any{"turn": turn, "step": step, "text": text}
			if parsed.Thinking != "" {
				payload["thinking"] = parsed.Thinking
			}
			s.emit(EventAssistantText, payload)
		}

		if len(actions) == 0 {
			final := parsed.Final
			if final == "" {
				final = strings.TrimSpace(parsed.Text)
			}
			if final == "" {
				final = resp.TrimmedContent()
			}
			s.finishFinal(ctx, turn, step, final)
			return &TurnResult{FinalText: final, Status: TurnOK, Usage: turnUsage}
		}

		for i := range actions {
			if actions[i].CallID == "" {
				actions[i].CallID = "call_" + uuid.NewString()[:8]
			}
		}
		if s.guard.ObserveStep(actions) {
			pendingWarning = true
		}

		observations := s.executeActions(ctx, turn, step, actions)

		for _, obs := range observations {
			s.appendMessage(modelkit.ToolResultMessage(obs.CallID, obs.Tool, obs.Text))
			s.hooks.observation(ctx, obs)
			s.emit(EventToolObservation, map[string]any{
				"turn": turn, "step": step,
				"call_id": obs.CallID, "tool": obs.Tool,
				"status": string(obs.Status), "text": obs.Text,
			})
			s.record(ctx, HistoryEvent{
				Type: HistoryObservation, Turn: turn, Step: step, Role: "tool",
				Content: obs.Text,
				Meta:    map[string]any{"tool": obs.Tool, "call_id": obs.CallID, "status": string(obs.Status)},
			})
		}

		if ctx.Err() != nil {
			return &TurnResult{Status: TurnCancelled, ErrorMessage: ctx.Err().Error(), Usage: turnUsage}
		}
	}

	s.logger.Warn("step limit reached", "turn", turn, "max_steps", s.cfg.MaxSteps)
	s.finishFinal(ctx, turn, s.cfg.MaxSteps, stepLimitFallback)
	return &TurnResult{FinalText: stepLimitFallback, Status: TurnOK, Usage: turnUsage}
}

// executeActions gates and dispatches one step's action batch. Results
// come back in input order regardless of completion order.
func (s *Session) executeActions(ctx context.Context, turn, step int, actions []Action) []Observation {
	results := make([]Observation, len(actions))

	type dispatch struct {
		idx    int
		action Action
	}
	var toRun []dispatch

	for i, action := range actions {
		// Hooks and event consumers get copies so external handlers
		// cannot mutate the bytes the tool is invoked with.
		s.hooks.action(ctx, action.clone())
		s.emit(EventToolAction, map[string]any{
			"turn": turn, "step": step,
			"call_id": action.CallID, "tool": action.Tool,
			"input": cloneRaw(action.Input),
		})
		s.record(ctx, HistoryEvent{
			Type: HistoryAction, Turn: turn, Step: step, Role: "assistant",
			Content: string(action.Input),
			Meta:    map[string]any{"tool": action.Tool, "call_id": action.CallID},
		})

		verdict, req := s.gate.Check(action)
		if verdict == VerdictAsk {
			verdict = s.awaitApproval(ctx, turn, step, req)
		}
		if verdict == VerdictDeny {
			results[i] = Observation{
				CallID: action.CallID,
				Tool:   action.Tool,
				Status: ObservationDenied,
				Text:   "Tool call was denied by the approval policy and was not executed.",
			}
			continue
		}
		toRun = append(toRun, dispatch{idx: i, action: action})
	}

	parallel := s.profile.SupportsParallelToolCalls && s.cfg.ParallelToolCalls && len(toRun) > 1
	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, d := range toRun {
			g.Go(func() error {
				results[d.idx] = s.invokeTool(gctx, d.action)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, d := range toRun {
			results[d.idx] = s.invokeTool(ctx, d.action)
		}
	}
	return results
}

// awaitApproval suspends the step until an external decision arrives.
// Without an approver, asks are denied.
func (s *Session) awaitApproval(ctx context.Context, turn, step int, req *ApprovalRequest) Verdict {
	if s.approver == nil {
		return VerdictDeny
	}
	s.setState(StateAwaitingApproval)
	defer s.setState(StateStepRunning)

	s.emit(EventApprovalRequest, map[string]any{
		"turn": turn, "step": step,
		"fingerprint": req.Fingerprint,
		"tool":        req.ToolName,
		"reason":      req.Reason,
		"risk_level":  req.RiskLevel,
	})

	scope, err := s.approver.Decide(ctx, *req)
	if err != nil {
		s.logger.Warn("approval decision failed", "tool", req.ToolName, "error", err)
		return VerdictDeny
	}
	switch scope {
	case DecisionOnce:
		return VerdictAllow
	case DecisionSession:
		s.gate.Record(req, DecisionSession)
		return VerdictAllow
	default:
		return VerdictDeny
	}
}

func (s *Session) invokeTool(ctx context.Context, action Action) Observation {
	obs := Observation{CallID: action.CallID, Tool: action.Tool}

	if s.tools == nil {
		obs.Status = ObservationError
		obs.Text = fmt.Sprintf("no tool named %q is available", action.Tool)
		return obs
	}

	// The invoker gets its own copy: a tool mutating its input must not
	// rewrite the arguments recorded in history.
	out, err := s.tools.Invoke(ctx, action.Tool, cloneRaw(action.Input))
	switch {
	case ctx.Err() != nil:
		obs.Status = ObservationCancelled
		obs.Text = "tool call cancelled"
	case err != nil:
		obs.Status = ObservationError
		obs.Text = err.Error()
	case out != nil && out.IsError:
		obs.Status = ObservationError
		obs.Text = strings.Join(out.Parts, "\n")
	default:
		obs.Status = ObservationSuccess
		if out != nil {
			obs.Text = strings.Join(out.Parts, "\n")
		}
	}

	obs.Text = TruncateObservation(
		obs.Text,
		s.cfg.ObservationCharLimits[action.Tool],
		s.cfg.ObservationLineLimits[action.Tool],
		TruncateHeadTail,
	)
	return obs
}

func (s *Session) finishFinal(ctx context.Context, turn, step int, final string) {
	s.hooks.final(ctx, final)
	s.emit(EventTurnFinal, map[string]any{"turn": turn, "step": step, "final": final})
	s.record(ctx, HistoryEvent{Type: HistoryFinal, Turn: turn, Step: step, Role: "assistant", Content: final})
}

// Steer queues mid-turn user guidance. Queued messages are injected
// into history between steps, before the next model call. Steering a
// session with no turn in flight takes effect at the next turn's first
// step.
func (s *Session) Steer(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	s.steering = append(s.steering, text)
	s.mu.Unlock()
}

func (s *Session) drainSteering(ctx context.Context, turn, step int) {
	s.mu.Lock()
	queued := s.steering
	s.steering = nil
	s.mu.Unlock()

	for _, text := range queued {
		s.appendMessage(modelkit.UserMessage(text))
		s.record(ctx, HistoryEvent{Type: HistorySteering, Turn: turn, Step: step, Role: "user", Content: text})
	}
}

// maybeCompact runs auto-compaction when prompt tokens cross the
// configured share of the context window.
func (s *Session) maybeCompact(ctx context.Context, turn, step int) {
	if s.cfg.CompactionRatio <= 0 || s.profile.ContextWindow <= 0 {
		return
	}
	promptTokens := s.counter.CountMessages(s.snapshotHistory())
	if !ShouldCompact(promptTokens, s.profile.ContextWindow, s.cfg.CompactionRatio) {
		return
	}
	if err := s.Compact(ctx); err != nil {
		s.logger.Warn("auto-compaction failed", "turn", turn, "step", step, "error", err)
	}
}

// Compact replaces everything after the system prompt with one summary
// message produced by a model call. It can be called explicitly or is
// triggered automatically by CompactionRatio. Compaction only condenses
// the snapshot it took: messages appended while the summarization call
// is in flight are spliced back in after the summary.
func (s *Session) Compact(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	before := s.snapshotHistory()
	compacted, usage, err := s.compactor.Compact(ctx, s.cfg.Provider, s.cfg.Model, before)
	if err != nil {
		return err
	}
	if usage != nil {
		s.addUsage(usage.Normalized())
	}

	s.mu.Lock()
	tail := s.messages[len(before):]
	s.messages = append(compacted, tail...)
	turn := s.turn
	s.mu.Unlock()

	s.emit(EventCompaction, map[string]any{
		"turn":              turn,
		"messages_replaced": len(before) - 1,
	})
	s.record(ctx, HistoryEvent{
		Type: HistoryCompaction, Turn: turn,
		Meta: map[string]any{"messages_replaced": len(before) - 1},
	})
	s.emitContextUsage(turn, 0)
	return nil
}

// Close flushes sinks and transitions the session to its terminal
// state. It is idempotent. A turn in flight keeps running but the
// session rejects new turns immediately.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.history.Flush(ctx)
	s.emit(EventSessionStatus, map[string]any{"state": string(StateClosed)})
	s.emitter.Close()
	s.logger.Info("session closed")
	return nil
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	if s.state == StateClosed || s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.emit(EventSessionStatus, map[string]any{"state": string(st)})
}

func (s *Session) appendMessage(m modelkit.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

// snapshotHistory returns a defensive copy of the conversation:
// mutating a snapshot, including tool-call argument bytes, must never
// reach the session's own history.
func (s *Session) snapshotHistory() []modelkit.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]modelkit.Message, len(s.messages))
	for i, m := range s.messages {
		if len(m.ToolCalls) > 0 {
			calls := make([]modelkit.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				tc.Arguments = cloneRaw(tc.Arguments)
				calls[j] = tc
			}
			m.ToolCalls = calls
		}
		out[i] = m
	}
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(json.RawMessage, len(in))
	copy(out, in)
	return out
}

// clone returns an Action whose Input no longer shares backing storage
// with the original.
func (a Action) clone() Action {
	a.Input = cloneRaw(a.Input)
	return a
}

func (s *Session) addUsage(u modelkit.Usage) {
	s.mu.Lock()
	s.usage = s.usage.Add(u)
	s.mu.Unlock()
}

func (s *Session) emit(kind EventKind, payload map[string]any) {
	s.emitter.Emit(SessionEvent{Kind: kind, SessionID: s.id, Payload: payload})
}

func (s *Session) record(ctx context.Context, ev HistoryEvent) {
	ev.SessionID = s.id
	s.history.Emit(ctx, ev)
}

func (s *Session) emitContextUsage(turn, step int) {
	promptTokens := s.counter.CountMessages(s.snapshotHistory())
	payload := map[string]any{
		"turn":           turn,
		"step":           step,
		"prompt_tokens":  promptTokens,
		"context_window": s.profile.ContextWindow,
	}
	if s.profile.ContextWindow > 0 {
		payload["used_ratio"] = float64(promptTokens) / float64(s.profile.ContextWindow)
	}
	s.emit(EventContextUsage, payload)
}
