package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadOnlyToolsAllowed(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, ReadOnlyPolicy)
	require.NoError(t, err)

	for _, name := range []string{"fetch_workflow", "list_workflows", "fetch_execution", "list_executions", "search_docs", "web_search"} {
		decision, _, err := engine.Evaluate(ctx, map[string]interface{}{"tool_name": name})
		require.NoError(t, err)
		require.Equal(t, "allow", decision, "tool %s", name)
	}
}

func TestWriteLikeToolsBlocked(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, ReadOnlyPolicy)
	require.NoError(t, err)

	for _, name := range []string{"update_workflow", "delete_workflow", "execute_workflow", "activate_workflow", ""} {
		decision, _, err := engine.Evaluate(ctx, map[string]interface{}{"tool_name": name})
		require.NoError(t, err)
		require.Equal(t, "block", decision, "tool %q must be blocked", name)
	}
}
