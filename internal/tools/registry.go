// Package tools declares the closed set of read-only tools the agent
// may act through and dispatches tool calls to the backing
// collaborators. The registry owns argument validation, the policy
// gate, per-call timeouts, retry with backoff, and error
// normalization; it performs no business logic of its own.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/docs"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/n8nreader"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/websearch"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/metrics"
	"github.com/anshulyadav1976/n8n-copilot/internal/policy"
)

type handlerFunc func(ctx context.Context, args map[string]any) (any, error)

const (
	defaultCallTimeout = 20 * time.Second
	maxRetries         = 2
	backoffBase        = 500 * time.Millisecond
)

// Registry is the fixed tool set. The declared set is the only path
// the agent can act through, so the read-only guarantee is structural:
// nothing here can be wired to a write or execute endpoint.
type Registry struct {
	definitions map[string]*Definition
	order       []string
	gate        *policy.Engine
	logger      *slog.Logger
	callTimeout time.Duration
	sleep       func(time.Duration) // swapped in tests
}

// New builds the registry over the three collaborators. gate may not
// be nil: every dispatch passes the rego allowlist.
func New(reader n8nreader.Reader, retriever docs.Retriever, searcher websearch.Searcher, gate *policy.Engine, logger *slog.Logger, callTimeout time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	r := &Registry{
		definitions: make(map[string]*Definition),
		gate:        gate,
		logger:      logger.With("component", "tools"),
		callTimeout: callTimeout,
		sleep:       time.Sleep,
	}
	r.register(&Definition{
		Name:        "fetch_workflow",
		Description: "Fetch the full JSON definition of one n8n workflow by id.",
		Params: map[string]ParamSpec{
			"workflow_id": {Type: "string", Description: "Workflow id", Required: true},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			return reader.GetWorkflow(ctx, stringArg(args, "workflow_id"))
		},
	})
	r.register(&Definition{
		Name:        "list_workflows",
		Description: "List workflows on the connected n8n instance, optionally filtered by name substring.",
		Params: map[string]ParamSpec{
			"filter": {Type: "string", Description: "Case-insensitive name substring"},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			workflows, err := reader.ListWorkflows(ctx, stringArg(args, "filter"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"workflows": workflows, "count": len(workflows)}, nil
		},
	})
	r.register(&Definition{
		Name:        "fetch_execution",
		Description: "Fetch one execution record by id, including error detail on failed runs.",
		Params: map[string]ParamSpec{
			"execution_id": {Type: "string", Description: "Execution id", Required: true},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			return reader.GetExecution(ctx, stringArg(args, "execution_id"))
		},
	})
	r.register(&Definition{
		Name:        "list_executions",
		Description: "List recent executions, optionally narrowed by workflow id and status.",
		Params: map[string]ParamSpec{
			"workflow_id": {Type: "string", Description: "Restrict to one workflow"},
			"status":      {Type: "string", Description: "Execution status", Enum: []string{"success", "error", "waiting", "running"}},
			"limit":       {Type: "integer", Description: "Maximum rows, default 20"},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			executions, err := reader.ListExecutions(ctx, n8nreader.ListExecutionsFilter{
				WorkflowID: stringArg(args, "workflow_id"),
				Status:     stringArg(args, "status"),
				Limit:      intArg(args, "limit", 20),
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"executions": executions, "count": len(executions)}, nil
		},
	})
	r.register(&Definition{
		Name:        "search_docs",
		Description: "Search the bundled n8n reference documentation for passages relevant to a query.",
		Params: map[string]ParamSpec{
			"query": {Type: "string", Description: "Search query", Required: true},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			passages, err := retriever.Search(ctx, stringArg(args, "query"), 5)
			if err != nil {
				return nil, err
			}
			return map[string]any{"passages": passages}, nil
		},
	})
	r.register(&Definition{
		Name:        "web_search",
		Description: "Search the web for up-to-date information; cite result URLs in answers.",
		Params: map[string]ParamSpec{
			"query": {Type: "string", Description: "Search query", Required: true},
		},
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			results, err := searcher.Search(ctx, stringArg(args, "query"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	})
	return r
}

func (r *Registry) register(def *Definition) {
	r.definitions[def.Name] = def
	r.order = append(r.order, def.Name)
}

// Schemas returns the tool declarations in registration order, for
// the LLM request.
func (r *Registry) Schemas() []llm.Tool {
	schemas := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.definitions[name].Schema())
	}
	return schemas
}

// Names returns the declared tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Invoke validates, gates and dispatches one tool call. The result is
// the JSON-encoded collaborator response; failures come back as
// *domain.ToolError and are never raised as panics.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (json.RawMessage, *domain.ToolError) {
	started := time.Now()
	result, toolErr := r.invoke(ctx, name, rawArgs)
	metrics.ToolCallSeconds.WithLabelValues(name).Observe(time.Since(started).Seconds())
	outcome := "ok"
	if toolErr != nil {
		outcome = string(toolErr.Kind)
		r.logger.Warn("tool call failed", "tool", name, "kind", toolErr.Kind, "error", toolErr.Message)
	}
	metrics.ToolCallsTotal.WithLabelValues(name, outcome).Inc()
	return result, toolErr
}

func (r *Registry) invoke(ctx context.Context, name string, rawArgs json.RawMessage) (json.RawMessage, *domain.ToolError) {
	def, known := r.definitions[name]
	if !known {
		return nil, &domain.ToolError{
			Kind:    domain.ToolErrorInvalidArgs,
			Message: fmt.Sprintf("%v: %q is not a declared tool", domain.ErrUnknownTool, name),
		}
	}

	args, err := def.validate(rawArgs)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorInvalidArgs, Message: err.Error()}
	}

	decision, reason, err := r.gate.Evaluate(ctx, map[string]interface{}{
		"tool_name": name,
		"args":      args,
	})
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: fmt.Sprintf("policy evaluation failed: %v", err)}
	}
	if decision != "allow" {
		if reason == "" {
			reason = "not in the read-only tool allowlist"
		}
		return nil, &domain.ToolError{Kind: domain.ToolErrorInvalidArgs, Message: fmt.Sprintf("blocked by policy: %s", reason)}
	}

	var lastErr *domain.ToolError
	backoff := backoffBase
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Info("retrying tool call", "tool", name, "attempt", attempt, "backoff", backoff)
			r.sleep(backoff)
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		value, err := def.handler(callCtx, args)
		cancel()
		if err == nil {
			raw, marshalErr := json.Marshal(value)
			if marshalErr != nil {
				return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: fmt.Sprintf("encode result: %v", marshalErr)}
			}
			return raw, nil
		}

		lastErr = normalize(err)
		if !lastErr.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// normalize folds any collaborator failure into the ToolError
// taxonomy. Deadline and cancellation map to transient; everything
// unclassified is treated as transient so the model can decide whether
// to retry with different arguments.
func normalize(err error) *domain.ToolError {
	var toolErr *domain.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	var invalidArgs *domain.InvalidArgumentsError
	if errors.As(err, &invalidArgs) {
		return &domain.ToolError{Kind: domain.ToolErrorInvalidArgs, Message: invalidArgs.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ToolError{Kind: domain.ToolErrorTransient, Message: "tool call timed out"}
	}
	return &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
}
