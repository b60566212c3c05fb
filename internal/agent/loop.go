// Package agent drives the turn state machine: prompt assembly, model
// calls, tool dispatch and folding results back into context until a
// final answer is produced or a budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/contextstore"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/metrics"
	"github.com/anshulyadav1976/n8n-copilot/internal/tools"
)

// State names one phase of the turn state machine.
type State string

const (
	StateAwaitingUserInput   State = "awaiting_user_input"
	StateAssemblingPrompt    State = "assembling_prompt"
	StateAwaitingModel       State = "awaiting_model"
	StateHandlingToolCall    State = "handling_tool_call"
	StateEmittingFinalAnswer State = "emitting_final_answer"
)

// Event is one progress notification published while a turn runs.
type Event struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	TurnID  string `json:"turn_id"`
	Tool    string `json:"tool,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Text    string `json:"text,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// EventSink receives turn events for one session. Implementations
// must not block the loop.
type EventSink interface {
	Publish(sessionID string, event Event)
}

// Recorder persists the audit trail of a turn. All methods are
// best-effort: recording failures never abort the turn.
type Recorder interface {
	RecordMessage(ctx context.Context, sessionID, turnID string, msg domain.Message) error
	RecordToolCall(ctx context.Context, sessionID string, tc domain.ToolCall) error
	RecordTurn(ctx context.Context, sessionID, turnID string, outcome domain.TurnOutcome, finalText string) error
}

const (
	// DefaultMaxIterations bounds model round-trips per turn.
	DefaultMaxIterations = 6
	// DefaultTurnTimeout bounds one turn's wall clock.
	DefaultTurnTimeout = 3 * time.Minute
)

// Loop orchestrates turns for one conversation. It holds no
// per-conversation state itself; everything lives in the Store passed
// to HandleUserMessage, so independent conversations can run loops in
// parallel.
type Loop struct {
	endpoint      llm.Endpoint
	registry      *tools.Registry
	logger        *slog.Logger
	sink          EventSink
	recorder      Recorder
	maxIterations int
	turnTimeout   time.Duration
}

// Option tweaks a Loop.
type Option func(*Loop)

// WithMaxIterations overrides the tool round-trip budget.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithTurnTimeout overrides the turn wall-clock timeout.
func WithTurnTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.turnTimeout = d
		}
	}
}

// WithEventSink attaches a progress sink.
func WithEventSink(sink EventSink) Option {
	return func(l *Loop) { l.sink = sink }
}

// WithRecorder attaches an audit recorder.
func WithRecorder(rec Recorder) Option {
	return func(l *Loop) { l.recorder = rec }
}

// New creates a loop over the inference endpoint and the tool
// registry.
func New(endpoint llm.Endpoint, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		endpoint:      endpoint,
		registry:      registry,
		logger:        logger.With("component", "agent"),
		maxIterations: DefaultMaxIterations,
		turnTimeout:   DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HandleUserMessage runs one full turn against the given context.
//
// Tool failures are folded into context and the model gets a chance to
// recover; only inference-endpoint failures are fatal to the turn.
// Budget and timeout exhaustion end the turn with an explicit notice,
// never an error. If ctx is cancelled between suspend points, results
// of in-flight calls are discarded instead of being folded into the
// cancelled context.
func (l *Loop) HandleUserMessage(ctx context.Context, store *contextstore.Store, text string) (*domain.TurnResult, error) {
	turnID := "turn_" + uuid.New().String()[:8]
	sessionID := store.SessionID()
	logger := l.logger.With("session", sessionID, "turn", turnID)

	turnCtx, cancel := context.WithTimeout(ctx, l.turnTimeout)
	defer cancel()

	l.publish(sessionID, Event{Type: "turn_started", TurnID: turnID, Ts: time.Now().UnixMilli()})

	userMsg := domain.Message{Role: domain.RoleUser, Content: text, CreatedAt: time.Now().UTC()}
	store.AppendMessage(userMsg)
	l.record(sessionID, turnID, userMsg)

	// The wire sequence for this turn. Cross-turn history is rebuilt
	// from the store; within the turn, assistant tool_calls and tool
	// results are paired by id on top of it.
	l.publishState(sessionID, turnID, StateAssemblingPrompt)
	wire := buildMessages(store)
	schemas := l.registry.Schemas()

	for iteration := 0; ; iteration++ {
		if iteration >= l.maxIterations {
			logger.Warn("turn budget exhausted", "iterations", iteration)
			return l.finish(store, sessionID, turnID, domain.TurnOutcomeBudgetExhausted,
				"I ran out of my tool-call budget for this message before reaching a confident answer. "+
					"Here is what I have so far; please ask again with a narrower question if needed.\n\n"+
					lastToolDigest(store, turnID)), nil
		}

		l.publishState(sessionID, turnID, StateAwaitingModel)
		completion, err := l.endpoint.Complete(turnCtx, wire, schemas)
		if err != nil {
			if timedOut(turnCtx, err) {
				logger.Warn("turn wall-clock timeout")
				return l.finish(store, sessionID, turnID, domain.TurnOutcomeTimedOut,
					"This turn hit its time limit before I could finish. Partial findings:\n\n"+lastToolDigest(store, turnID)), nil
			}
			if ctx.Err() != nil {
				// Caller cancelled: discard, do not fold.
				return nil, ctx.Err()
			}
			metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
			var epErr *domain.InferenceEndpointError
			if !errors.As(err, &epErr) {
				err = &domain.InferenceEndpointError{Err: err}
			}
			logger.Error("inference endpoint failed", "error", err)
			l.publish(sessionID, Event{Type: "turn_failed", TurnID: turnID, Ts: time.Now().UnixMilli(), Text: err.Error()})
			metrics.TurnsTotal.WithLabelValues(string(domain.TurnOutcomeFailed)).Inc()
			return nil, err
		}
		metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()

		if !completion.IsToolCall() {
			l.publishState(sessionID, turnID, StateEmittingFinalAnswer)
			return l.finish(store, sessionID, turnID, domain.TurnOutcomeAnswered, completion.FinalText), nil
		}

		l.publishState(sessionID, turnID, StateHandlingToolCall)
		wire = append(wire, llm.ChatMessage{Role: "assistant", ToolCalls: completion.ToolCalls})

		// Tools run sequentially in request order so the ledger and
		// the folded history are reproducible.
		for _, call := range completion.ToolCalls {
			resultMsg, ledgerEntry := l.invokeTool(turnCtx, sessionID, turnID, call)
			if ctx.Err() != nil {
				// Cancelled mid-turn: the completed call's result is
				// discarded rather than folded into a dead context.
				return nil, ctx.Err()
			}
			store.AppendToolCall(ledgerEntry)
			l.recordToolCall(sessionID, ledgerEntry)

			toolMsg := domain.Message{
				Role:      domain.RoleTool,
				ToolName:  call.Function.Name,
				Content:   resultMsg,
				CreatedAt: time.Now().UTC(),
			}
			store.AppendMessage(toolMsg)
			l.record(sessionID, turnID, toolMsg)

			wire = append(wire, llm.ChatMessage{
				Role:       "tool",
				Content:    resultMsg,
				ToolCallID: call.ID,
			})
		}
	}
}

// invokeTool runs one requested call through the registry and renders
// the result (or the error) as the tool message content. A failure is
// a normal, if negative, result: the loop continues either way.
func (l *Loop) invokeTool(ctx context.Context, sessionID, turnID string, call llm.ToolCall) (string, domain.ToolCall) {
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)
	l.publish(sessionID, Event{Type: "tool_call", TurnID: turnID, Ts: time.Now().UnixMilli(), Tool: name})

	entry := domain.ToolCall{
		ToolCallID: "tc_" + uuid.New().String()[:8],
		TurnID:     turnID,
		Name:       name,
		Arguments:  args,
		CreatedAt:  time.Now().UTC(),
	}

	result, toolErr := l.registry.Invoke(ctx, name, args)
	if toolErr != nil {
		entry.Status = domain.ToolCallStatusFailed
		entry.Error = toolErr
		l.publish(sessionID, Event{Type: "tool_result", TurnID: turnID, Ts: time.Now().UnixMilli(), Tool: name, Kind: string(toolErr.Kind)})
		content := fmt.Sprintf("Tool %s failed (%s): %s", name, toolErr.Kind, toolErr.Message)
		if toolErr.RetryAfter > 0 {
			content += fmt.Sprintf(" (retry after %s)", toolErr.RetryAfter)
		}
		return content, entry
	}

	entry.Status = domain.ToolCallStatusSucceeded
	entry.Result = result
	l.publish(sessionID, Event{Type: "tool_result", TurnID: turnID, Ts: time.Now().UnixMilli(), Tool: name, Kind: "ok"})
	return string(result), entry
}

// finish appends the assistant answer and closes the turn.
func (l *Loop) finish(store *contextstore.Store, sessionID, turnID string, outcome domain.TurnOutcome, finalText string) *domain.TurnResult {
	assistantMsg := domain.Message{Role: domain.RoleAssistant, Content: finalText, CreatedAt: time.Now().UTC()}
	store.AppendMessage(assistantMsg)
	l.record(sessionID, turnID, assistantMsg)
	if l.recorder != nil {
		if err := l.recorder.RecordTurn(context.Background(), sessionID, turnID, outcome, finalText); err != nil {
			l.logger.Warn("failed to record turn", "error", err)
		}
	}

	metrics.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	l.publish(sessionID, Event{Type: "final", TurnID: turnID, Ts: time.Now().UnixMilli(), Text: finalText, Outcome: string(outcome)})
	return &domain.TurnResult{
		TurnID:    turnID,
		FinalText: finalText,
		Outcome:   outcome,
		Context:   store.Summary(),
	}
}

// lastToolDigest summarizes this turn's tool results for best-effort
// answers on budget or timeout exhaustion.
func lastToolDigest(store *contextstore.Store, turnID string) string {
	calls := store.ToolCalls()
	digest := ""
	for _, tc := range calls {
		if tc.TurnID != turnID {
			continue
		}
		switch tc.Status {
		case domain.ToolCallStatusSucceeded:
			digest += fmt.Sprintf("- %s succeeded\n", tc.Name)
		default:
			digest += fmt.Sprintf("- %s failed: %s\n", tc.Name, tc.Error.Message)
		}
	}
	if digest == "" {
		return "(no tool results were gathered)"
	}
	return "Tool activity this turn:\n" + digest
}

func timedOut(turnCtx context.Context, err error) bool {
	return errors.Is(turnCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

func (l *Loop) publishState(sessionID, turnID string, state State) {
	l.publish(sessionID, Event{Type: "state", TurnID: turnID, Ts: time.Now().UnixMilli(), Text: string(state)})
}

func (l *Loop) publish(sessionID string, event Event) {
	if l.sink != nil {
		l.sink.Publish(sessionID, event)
	}
}

func (l *Loop) record(sessionID, turnID string, msg domain.Message) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordMessage(context.Background(), sessionID, turnID, msg); err != nil {
		l.logger.Warn("failed to record message", "error", err)
	}
}

func (l *Loop) recordToolCall(sessionID string, tc domain.ToolCall) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordToolCall(context.Background(), sessionID, tc); err != nil {
		l.logger.Warn("failed to record tool call", "error", err)
	}
}
