// Package policy evaluates every tool dispatch against a rego policy.
// The tool registry is already a closed, read-only set; the policy
// engine is the second, declarative layer of the same guarantee, so a
// future tool addition has to pass an explicit allowlist too.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the decision query over the given policy module.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate checks one tool dispatch. Input carries tool_name, args and
// session_id. Returns the decision ("allow" or "block") and a reason.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy module defines a default, so an empty result
		// means the module is broken. Fail closed.
		return "block", "policy returned no decision", nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, "", nil
	}
	return "block", "unexpected policy return type", nil
}

// ReadOnlyPolicy is the shipped tool policy: a closed allowlist of
// read operations. Everything else is blocked, including any tool name
// suggesting a write or execution path.
const ReadOnlyPolicy = `
package tool_policy

default decision = "block"

read_only_tools := {
	"fetch_workflow",
	"list_workflows",
	"fetch_execution",
	"list_executions",
	"search_docs",
	"web_search",
}

decision = "allow" {
	read_only_tools[input.tool_name]
}
`
