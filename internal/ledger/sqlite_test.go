package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestTranscriptRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, l.RecordMessage(ctx, "sess_1", "turn_1", domain.Message{
		Role: domain.RoleUser, Content: "why did execution 1042 fail?", CreatedAt: base,
	}))
	require.NoError(t, l.RecordMessage(ctx, "sess_1", "turn_1", domain.Message{
		Role: domain.RoleTool, Content: `{"status":"error"}`, ToolName: "fetch_execution", CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, l.RecordMessage(ctx, "sess_1", "turn_1", domain.Message{
		Role: domain.RoleAssistant, Content: "the HTTP node timed out", CreatedAt: base.Add(2 * time.Second),
	}))
	// Another session's messages must not leak in.
	require.NoError(t, l.RecordMessage(ctx, "sess_2", "turn_9", domain.Message{
		Role: domain.RoleUser, Content: "unrelated", CreatedAt: base,
	}))

	msgs, err := l.Transcript(ctx, "sess_1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, domain.RoleUser, msgs[0].Role)
	require.Equal(t, "fetch_execution", msgs[1].ToolName)
	require.Equal(t, domain.RoleAssistant, msgs[2].Role)

	limited, err := l.Transcript(ctx, "sess_1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestToolCallRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, l.RecordToolCall(ctx, "sess_1", domain.ToolCall{
		ToolCallID: "call_a",
		TurnID:     "turn_1",
		Name:       "fetch_workflow",
		Arguments:  json.RawMessage(`{"workflow_id":"7"}`),
		Status:     domain.ToolCallStatusSucceeded,
		Result:     json.RawMessage(`{"id":"7"}`),
		CreatedAt:  now,
	}))
	require.NoError(t, l.RecordToolCall(ctx, "sess_1", domain.ToolCall{
		ToolCallID: "call_b",
		TurnID:     "turn_1",
		Name:       "fetch_execution",
		Arguments:  json.RawMessage(`{"execution_id":"99"}`),
		Status:     domain.ToolCallStatusFailed,
		Error:      &domain.ToolError{Kind: domain.ToolErrorNotFound, Message: "execution 99 not found"},
		CreatedAt:  now.Add(time.Second),
	}))

	calls, err := l.ToolCalls(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, calls, 2)

	require.Equal(t, domain.ToolCallStatusSucceeded, calls[0].Status)
	require.JSONEq(t, `{"id":"7"}`, string(calls[0].Result))
	require.Nil(t, calls[0].Error)

	require.Equal(t, domain.ToolCallStatusFailed, calls[1].Status)
	require.NotNil(t, calls[1].Error)
	require.Equal(t, domain.ToolErrorNotFound, calls[1].Error.Kind)
	require.Nil(t, calls[1].Result)
}

func TestTurnOutcomes(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordTurn(ctx, "sess_1", "turn_1", domain.TurnOutcomeAnswered, "done"))
	require.NoError(t, l.RecordTurn(ctx, "sess_1", "turn_2", domain.TurnOutcomeBudgetExhausted, "ran out of tool calls"))

	turns, err := l.TurnOutcomes(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, domain.TurnOutcomeAnswered, turns[0].Outcome)
	require.Equal(t, domain.TurnOutcomeBudgetExhausted, turns[1].Outcome)
}
