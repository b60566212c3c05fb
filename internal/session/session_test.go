package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/docs"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/n8nreader"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/websearch"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/policy"
)

type fakeReader struct {
	mu        sync.Mutex
	workflows map[string]json.RawMessage
	connErr   error
}

func (f *fakeReader) setWorkflow(id string, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.workflows == nil {
		f.workflows = make(map[string]json.RawMessage)
	}
	f.workflows[id] = json.RawMessage(raw)
}

func (f *fakeReader) ListWorkflows(ctx context.Context, nameFilter string) ([]domain.WorkflowSummary, error) {
	return nil, nil
}

func (f *fakeReader) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.workflows[id]
	if !ok {
		return nil, &domain.ToolError{Kind: domain.ToolErrorNotFound, Message: "workflow " + id + " not found"}
	}
	return &domain.WorkflowSnapshot{ID: id, Name: "wf " + id, FetchedAt: time.Now(), RawJSON: raw}, nil
}

func (f *fakeReader) ListExecutions(ctx context.Context, filter n8nreader.ListExecutionsFilter) ([]domain.ExecutionSummary, error) {
	return nil, nil
}

func (f *fakeReader) GetExecution(ctx context.Context, id string) (*domain.ExecutionSnapshot, error) {
	return &domain.ExecutionSnapshot{ID: id, WorkflowID: "7", Status: "error", FetchedAt: time.Now()}, nil
}

func (f *fakeReader) TestConnection(ctx context.Context) error { return f.connErr }

type noopRetriever struct{}

func (noopRetriever) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	return nil, nil
}

type noopSearcher struct{}

func (noopSearcher) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return nil, nil
}

// blockingEndpoint holds every completion until release is closed.
type blockingEndpoint struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingEndpoint() *blockingEndpoint {
	return &blockingEndpoint{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingEndpoint) Complete(ctx context.Context, messages []llm.ChatMessage, tools []llm.Tool) (*llm.Completion, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return &llm.Completion{FinalText: "done"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ docs.Retriever = noopRetriever{}
var _ websearch.Searcher = noopSearcher{}

func newTestManager(t *testing.T, endpoint llm.Endpoint, reader *fakeReader) *Manager {
	t.Helper()
	gate, err := policy.NewEngine(context.Background(), policy.ReadOnlyPolicy)
	require.NoError(t, err)
	m := NewManager(Config{
		MaxIterations: 6,
		TurnTimeout:   5 * time.Second,
		ToolTimeout:   time.Second,
		ReaderTimeout: time.Second,
		HistoryBudget: 48000,
	}, endpoint, noopRetriever{}, noopSearcher{}, gate, nil, nil, slog.Default())
	m.SetReaderFactory(func(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (n8nreader.Reader, error) {
		return reader, nil
	})
	return m
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	reader := &fakeReader{connErr: &domain.ToolError{Kind: domain.ToolErrorAuth, Message: "api key rejected"}}
	m := newTestManager(t, llm.NewMockClient(), reader)

	_, err := m.Connect(context.Background(), "http://n8n.local", "bad-key")
	require.Error(t, err)
	var toolErr *domain.ToolError
	require.True(t, errors.As(err, &toolErr))
	require.Equal(t, domain.ToolErrorAuth, toolErr.Kind)
}

func TestConcurrentTurnRejected(t *testing.T) {
	endpoint := newBlockingEndpoint()
	m := newTestManager(t, endpoint, &fakeReader{})
	sess, err := m.Connect(context.Background(), "http://n8n.local", "key")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sess.HandleUserMessage(context.Background(), "why did my workflow fail?")
		done <- err
	}()
	<-endpoint.started

	// Second message while the first turn is still awaiting the model.
	_, err = sess.HandleUserMessage(context.Background(), "hello again")
	require.ErrorIs(t, err, domain.ErrConcurrentTurn)

	close(endpoint.release)
	require.NoError(t, <-done)

	// With the first turn finished the session accepts messages again.
	_, err = sess.HandleUserMessage(context.Background(), "and now?")
	require.NoError(t, err)
}

func TestRefreshWorkflowDiffOnSupersede(t *testing.T) {
	reader := &fakeReader{}
	reader.setWorkflow("7", `{"name":"Lead sync","nodes":[{"type":"webhook"}]}`)
	m := newTestManager(t, llm.NewMockClient(), reader)
	sess, err := m.Connect(context.Background(), "http://n8n.local", "key")
	require.NoError(t, err)

	diff, err := sess.RefreshWorkflow(context.Background(), "7")
	require.NoError(t, err)
	require.Nil(t, diff, "first fetch has nothing to diff against")

	reader.setWorkflow("7", `{"name":"Lead sync","nodes":[{"type":"webhook"},{"type":"set"}]}`)
	diff, err = sess.RefreshWorkflow(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, diff)
	require.Contains(t, diff.Added, "nodes.1")
}

func TestRefreshDifferentWorkflowResetsContext(t *testing.T) {
	reader := &fakeReader{}
	reader.setWorkflow("7", `{"name":"Lead sync"}`)
	reader.setWorkflow("9", `{"name":"Invoice import"}`)
	m := newTestManager(t, llm.NewMockClient(), reader)
	sess, err := m.Connect(context.Background(), "http://n8n.local", "key")
	require.NoError(t, err)

	_, err = sess.RefreshWorkflow(context.Background(), "7")
	require.NoError(t, err)
	_, err = sess.SetExecution(context.Background(), "1042")
	require.NoError(t, err)

	diff, err := sess.RefreshWorkflow(context.Background(), "9")
	require.NoError(t, err)
	require.Nil(t, diff, "switching workflows starts a fresh context")

	summary := sess.Summary()
	require.True(t, summary.HasWorkflow)
	require.Equal(t, "9", summary.WorkflowID)
	require.False(t, summary.HasExecution, "execution from the old investigation is gone")
}

func TestClearExecutionIdempotent(t *testing.T) {
	m := newTestManager(t, llm.NewMockClient(), &fakeReader{})
	sess, err := m.Connect(context.Background(), "http://n8n.local", "key")
	require.NoError(t, err)

	_, err = sess.SetExecution(context.Background(), "1042")
	require.NoError(t, err)
	sess.ClearExecution()
	sess.ClearExecution()
	require.False(t, sess.Summary().HasExecution)
}

func TestCloseCancelsInFlightTurn(t *testing.T) {
	endpoint := newBlockingEndpoint()
	m := newTestManager(t, endpoint, &fakeReader{})
	sess, err := m.Connect(context.Background(), "http://n8n.local", "key")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sess.HandleUserMessage(context.Background(), "hi")
		done <- err
	}()
	<-endpoint.started

	m.Close(sess.ID)
	require.Error(t, <-done)

	_, err = m.Get(sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
