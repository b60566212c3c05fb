// Package snippets builds small workflow-JSON fragments the copilot
// can hand to the user as copy-paste suggestions. The engine itself
// never writes anything back to the instance; snippets are advisory
// output only.
package snippets

// Node is one workflow node fragment.
type Node map[string]any

// Workflow is a mergeable fragment: nodes plus their connections.
type Workflow struct {
	Nodes       []Node         `json:"nodes"`
	Connections map[string]any `json:"connections"`
}

// HTTPRequestNode returns an HTTP Request node with no authentication.
func HTTPRequestNode(name, url, method string) Node {
	if name == "" {
		name = "HTTP Request"
	}
	if url == "" {
		url = "https://api.example.com/"
	}
	if method == "" {
		method = "GET"
	}
	return Node{
		"parameters": map[string]any{
			"authentication": "none",
			"requestMethod":  method,
			"url":            url,
		},
		"type":        "n8n-nodes-base.httpRequest",
		"typeVersion": 4,
		"name":        name,
		"position":    []int{0, 0},
	}
}

// SetNode returns a Set node writing one string value.
func SetNode(name, key, value string) Node {
	if name == "" {
		name = "Set"
	}
	if key == "" {
		key = "key"
	}
	if value == "" {
		value = "value"
	}
	return Node{
		"parameters": map[string]any{
			"keepOnlySet": false,
			"values": map[string]any{
				"string": []any{
					map[string]any{"name": key, "value": value},
				},
			},
		},
		"type":        "n8n-nodes-base.set",
		"typeVersion": 2,
		"name":        name,
		"position":    []int{0, 0},
	}
}

// IfNode returns an IF node with a single string condition.
func IfNode(name, left, op, right string) Node {
	if name == "" {
		name = "IF"
	}
	if left == "" {
		left = "={{$json.key}}"
	}
	if op == "" {
		op = "equals"
	}
	if right == "" {
		right = "value"
	}
	return Node{
		"parameters": map[string]any{
			"conditions": map[string]any{
				"string": []any{
					map[string]any{"value1": left, "operation": op, "value2": right},
				},
			},
		},
		"type":        "n8n-nodes-base.if",
		"typeVersion": 2,
		"name":        name,
		"position":    []int{0, 0},
	}
}

// FunctionNode returns a Function node running the given code.
func FunctionNode(name, code string) Node {
	if name == "" {
		name = "Function"
	}
	if code == "" {
		code = "return items.map(item => { item.json.added = true; return item; });"
	}
	return Node{
		"parameters": map[string]any{
			"functionCode": code,
		},
		"type":        "n8n-nodes-base.function",
		"typeVersion": 2,
		"name":        name,
		"position":    []int{0, 0},
	}
}

// SimpleFlowHTTPSetIf returns a minimal workflow fragment wiring
// HTTP Request -> Set -> IF, suitable for merging into an existing
// workflow definition.
func SimpleFlowHTTPSetIf() Workflow {
	http := HTTPRequestNode("HTTP Request", "", "")
	set := SetNode("Set", "key", "value")
	set["position"] = []int{260, 0}
	iff := IfNode("IF", "={{$json.key}}", "equals", "value")
	iff["position"] = []int{520, 0}

	return Workflow{
		Nodes: []Node{http, set, iff},
		Connections: map[string]any{
			"HTTP Request": map[string]any{
				"main": []any{[]any{map[string]any{"node": "Set", "type": "main", "index": 0}}},
			},
			"Set": map[string]any{
				"main": []any{[]any{map[string]any{"node": "IF", "type": "main", "index": 0}}},
			},
		},
	}
}

// Catalog lists the named snippets served over the API.
func Catalog() map[string]any {
	return map[string]any{
		"http_request": HTTPRequestNode("", "", ""),
		"set":          SetNode("", "", ""),
		"if":           IfNode("", "", "", ""),
		"function":     FunctionNode("", ""),
		"http_set_if":  SimpleFlowHTTPSetIf(),
	}
}
