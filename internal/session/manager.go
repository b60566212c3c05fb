// Package session owns one AgentContext per conversation and the
// collaborators bound to it. Credentials arrive with the connect call,
// are held in the session's reader for its lifetime, and are never
// persisted or echoed back.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/docs"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/n8nreader"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/websearch"
	"github.com/anshulyadav1976/n8n-copilot/internal/agent"
	"github.com/anshulyadav1976/n8n-copilot/internal/contextstore"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/policy"
	"github.com/anshulyadav1976/n8n-copilot/internal/tools"
)

// ReaderFactory builds a remote-data reader for one instance. Swapped
// in tests.
type ReaderFactory func(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (n8nreader.Reader, error)

// Config carries the knobs shared by all sessions.
type Config struct {
	MaxIterations int
	TurnTimeout   time.Duration
	ToolTimeout   time.Duration
	ReaderTimeout time.Duration
	HistoryBudget int
}

// Manager creates and owns sessions. Independent sessions run fully in
// parallel; within one session only a single turn may be in flight.
type Manager struct {
	cfg       Config
	endpoint  llm.Endpoint
	retriever docs.Retriever
	searcher  websearch.Searcher
	gate      *policy.Engine
	sink      agent.EventSink
	recorder  agent.Recorder
	logger    *slog.Logger
	readers   ReaderFactory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Session is one live conversation.
type Session struct {
	ID        string
	CreatedAt time.Time

	store  *contextstore.Store
	reader n8nreader.Reader
	loop   *agent.Loop

	// turnMu serializes turns: TryLock failure means a turn is in
	// flight and the new message is rejected, not queued.
	turnMu sync.Mutex

	cancelMu   sync.Mutex
	turnCancel context.CancelFunc
}

// NewManager wires the shared collaborators.
func NewManager(cfg Config, endpoint llm.Endpoint, retriever docs.Retriever, searcher websearch.Searcher, gate *policy.Engine, sink agent.EventSink, recorder agent.Recorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		endpoint:  endpoint,
		retriever: retriever,
		searcher:  searcher,
		gate:      gate,
		sink:      sink,
		recorder:  recorder,
		logger:    logger.With("component", "session"),
		readers: func(baseURL, apiKey string, timeout time.Duration, l *slog.Logger) (n8nreader.Reader, error) {
			return n8nreader.NewClient(baseURL, apiKey, timeout, l)
		},
		sessions: make(map[string]*Session),
	}
}

// SetReaderFactory replaces the reader constructor. Test hook.
func (m *Manager) SetReaderFactory(f ReaderFactory) { m.readers = f }

// Connect validates the instance credentials and creates a session
// bound to them. The connection is tested before the session exists so
// a bad key fails fast, like the original sidebar connect flow.
func (m *Manager) Connect(ctx context.Context, baseURL, apiKey string) (*Session, error) {
	reader, err := m.readers(baseURL, apiKey, m.cfg.ReaderTimeout, m.logger)
	if err != nil {
		return nil, fmt.Errorf("create reader: %w", err)
	}
	if err := reader.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	registry := tools.New(reader, m.retriever, m.searcher, m.gate, m.logger, m.cfg.ToolTimeout)
	id := "sess_" + uuid.New().String()[:8]
	sess := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		store:     contextstore.New(id, m.cfg.HistoryBudget),
		reader:    reader,
		loop: agent.New(m.endpoint, registry, m.logger,
			agent.WithMaxIterations(m.cfg.MaxIterations),
			agent.WithTurnTimeout(m.cfg.TurnTimeout),
			agent.WithEventSink(m.sink),
			agent.WithRecorder(m.recorder),
		),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	m.logger.Info("session connected", "session", id)
	return sess, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Close drops a session and cancels any in-flight turn.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		sess.CancelTurn()
		m.logger.Info("session closed", "session", id)
	}
}

// HandleUserMessage runs one turn. A message arriving while another
// turn is in flight is rejected with domain.ErrConcurrentTurn rather
// than queued, so the caller can tell the user immediately.
func (s *Session) HandleUserMessage(ctx context.Context, text string) (*domain.TurnResult, error) {
	if !s.turnMu.TryLock() {
		return nil, domain.ErrConcurrentTurn
	}
	defer s.turnMu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.turnCancel = cancel
	s.cancelMu.Unlock()
	defer func() {
		cancel()
		s.cancelMu.Lock()
		s.turnCancel = nil
		s.cancelMu.Unlock()
	}()

	return s.loop.HandleUserMessage(turnCtx, s.store, text)
}

// CancelTurn cancels the in-flight turn, if any. In-flight tool calls
// run to completion but their results are discarded by the loop.
func (s *Session) CancelTurn() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.turnCancel != nil {
		s.turnCancel()
	}
}

// RefreshWorkflow fetches the workflow and installs it as the active
// snapshot. Returns the structural diff against the prior snapshot, or
// nil when there was none. Selecting a different workflow than the
// active one resets the conversation context first: a context belongs
// to one workflow investigation.
func (s *Session) RefreshWorkflow(ctx context.Context, id string) (*domain.WorkflowDiff, error) {
	snapshot, err := s.reader.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if active := s.store.Workflow(); active != nil && active.ID != id {
		s.store.Reset()
	}
	return s.store.SetWorkflow(*snapshot)
}

// SetExecution fetches the execution and installs it as the active
// execution snapshot.
func (s *Session) SetExecution(ctx context.Context, id string) (*domain.ExecutionSnapshot, error) {
	snapshot, err := s.reader.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store.SetExecution(*snapshot)
	return snapshot, nil
}

// ClearExecution removes the active execution snapshot. Idempotent.
func (s *Session) ClearExecution() {
	s.store.ClearExecution()
}

// Summary returns the context summary for display.
func (s *Session) Summary() domain.ContextSummary {
	return s.store.Summary()
}

// Reader exposes the session's remote-data reader for passthrough
// listings in the transport layer.
func (s *Session) Reader() n8nreader.Reader {
	return s.reader
}

// Reset drops all conversation state, keeping the connection.
func (s *Session) Reset() {
	s.store.Reset()
}
