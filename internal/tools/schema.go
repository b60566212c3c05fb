package tools

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// ParamSpec declares one tool argument.
type ParamSpec struct {
	Type        string // "string" or "integer"
	Description string
	Required    bool
	Enum        []string
}

// Definition declares one tool of the closed set. Every tool is
// read-only; there is no field to say otherwise.
type Definition struct {
	Name        string
	Description string
	Params      map[string]ParamSpec

	handler handlerFunc
}

// Schema renders the definition as an OpenAI-style tool declaration.
func (d *Definition) Schema() llm.Tool {
	properties := make(map[string]any, len(d.Params))
	var required []string
	for name, spec := range d.Params {
		prop := map[string]any{
			"type":        spec.Type,
			"description": spec.Description,
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// validate checks raw arguments against the definition before any
// network I/O happens. The returned error names the offending field.
func (d *Definition) validate(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: "", Reason: "must be a JSON object"}
		}
	}

	for name, spec := range d.Params {
		val, present := args[name]
		if !present || val == nil {
			if spec.Required {
				return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "is required"}
			}
			continue
		}
		switch spec.Type {
		case "string":
			s, ok := val.(string)
			if !ok {
				return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "must be a string"}
			}
			if spec.Required && s == "" {
				return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "must not be empty"}
			}
			if len(spec.Enum) > 0 && !contains(spec.Enum, s) {
				return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "is not an allowed value"}
			}
		case "integer":
			f, ok := val.(float64)
			if !ok || f != math.Trunc(f) {
				return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "must be an integer"}
			}
		}
	}
	for name := range args {
		if _, known := d.Params[name]; !known {
			return nil, &domain.InvalidArgumentsError{Tool: d.Name, Field: name, Reason: "is not a recognized argument"}
		}
	}
	return args, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func stringArg(args map[string]any, name string) string {
	if s, ok := args[name].(string); ok {
		return s
	}
	return ""
}

func intArg(args map[string]any, name string, fallback int) int {
	if f, ok := args[name].(float64); ok {
		return int(f)
	}
	return fallback
}
