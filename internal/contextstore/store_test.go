package contextstore

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

func snapshot(id string, fetchedAt time.Time, raw string) domain.WorkflowSnapshot {
	return domain.WorkflowSnapshot{ID: id, FetchedAt: fetchedAt, RawJSON: json.RawMessage(raw)}
}

func TestSetWorkflowFirstFetchProducesNoDiff(t *testing.T) {
	s := New("sess_1", 0)

	d, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{"nodes":[]}`))
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Empty(t, s.DiffHistory())
	require.NotNil(t, s.Workflow())
	assert.Equal(t, "wf1", s.Workflow().ID)
}

func TestSetWorkflowSupersedeComputesOneDiff(t *testing.T) {
	s := New("sess_1", 0)
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	_, err := s.SetWorkflow(snapshot("wf1", t1, `{"nodes":[{"id":"a"}]}`))
	require.NoError(t, err)

	d, err := s.SetWorkflow(snapshot("wf1", t2, `{"nodes":[{"id":"a"},{"id":"b"}]}`))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []string{"nodes.1"}, d.Added)
	assert.Equal(t, t1, d.FromFetchedAt)
	assert.Equal(t, t2, d.ToFetchedAt)

	history := s.DiffHistory()
	require.Len(t, history, 1)
	assert.Equal(t, *d, history[0])
	assert.Equal(t, t2, s.Workflow().FetchedAt)
}

func TestSetWorkflowMalformedNewSnapshotKeepsOld(t *testing.T) {
	s := New("sess_1", 0)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{"ok":true}`))
	require.NoError(t, err)

	_, err = s.SetWorkflow(snapshot("wf1", time.Now(), `not json`))
	require.Error(t, err)
	// The failed refresh must not leave partial state behind.
	require.NotNil(t, s.Workflow())
	assert.JSONEq(t, `{"ok":true}`, string(s.Workflow().RawJSON))
	assert.Empty(t, s.DiffHistory())
}

func TestClearExecutionLeavesWorkflowUntouched(t *testing.T) {
	s := New("sess_1", 0)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{}`))
	require.NoError(t, err)
	s.SetExecution(domain.ExecutionSnapshot{ID: "ex1", WorkflowID: "wf1", Status: "error", FetchedAt: time.Now()})

	s.ClearExecution()
	assert.Nil(t, s.Execution())
	assert.NotNil(t, s.Workflow())

	// Idempotent.
	s.ClearExecution()
	assert.Nil(t, s.Execution())
}

func TestHistoryTruncatesOldestFirst(t *testing.T) {
	s := New("sess_1", 40)
	s.AppendMessage(domain.Message{Role: domain.RoleUser, Content: strings.Repeat("a", 30)})
	s.AppendMessage(domain.Message{Role: domain.RoleAssistant, Content: strings.Repeat("b", 30)})
	s.AppendMessage(domain.Message{Role: domain.RoleUser, Content: strings.Repeat("c", 30)})

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, strings.Repeat("c", 30), h[0].Content)
}

func TestTruncationNeverDropsSnapshots(t *testing.T) {
	s := New("sess_1", 10)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{"big":"`+strings.Repeat("x", 500)+`"}`))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		s.AppendMessage(domain.Message{Role: domain.RoleUser, Content: strings.Repeat("m", 20)})
	}
	assert.NotNil(t, s.Workflow(), "snapshots are structured context, not history")
}

func TestSummaryMismatchSurfaced(t *testing.T) {
	s := New("sess_1", 0)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{}`))
	require.NoError(t, err)
	s.SetExecution(domain.ExecutionSnapshot{ID: "ex9", WorkflowID: "wf-other", Status: "success", FetchedAt: time.Now()})

	sum := s.Summary()
	assert.True(t, sum.ExecutionMismatch)

	text := RenderSummary(sum)
	assert.Contains(t, text, "different workflow")
}

func TestSummaryNeverContainsCredentials(t *testing.T) {
	s := New("sess_1", 0)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{"name":"wf"}`))
	require.NoError(t, err)

	raw, err := json.Marshal(s.Summary())
	require.NoError(t, err)
	lower := strings.ToLower(string(raw))
	assert.NotContains(t, lower, "api_key")
	assert.NotContains(t, lower, "apikey")
	assert.NotContains(t, lower, "authorization")
}

func TestResetDropsEverything(t *testing.T) {
	s := New("sess_1", 0)
	_, err := s.SetWorkflow(snapshot("wf1", time.Now(), `{}`))
	require.NoError(t, err)
	s.SetExecution(domain.ExecutionSnapshot{ID: "ex1", FetchedAt: time.Now()})
	s.AppendMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})
	s.AppendToolCall(domain.ToolCall{ToolCallID: "tc_1", Name: "list_workflows"})

	s.Reset()
	assert.Nil(t, s.Workflow())
	assert.Nil(t, s.Execution())
	assert.Empty(t, s.History())
	assert.Empty(t, s.ToolCalls())
	assert.Empty(t, s.DiffHistory())
}
