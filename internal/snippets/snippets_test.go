package snippets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPRequestNodeDefaults(t *testing.T) {
	node := HTTPRequestNode("", "", "")
	require.Equal(t, "n8n-nodes-base.httpRequest", node["type"])
	require.Equal(t, "HTTP Request", node["name"])

	params, ok := node["parameters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "GET", params["requestMethod"])
	require.Equal(t, "none", params["authentication"])
}

func TestSimpleFlowConnectionsMatchNodeNames(t *testing.T) {
	flow := SimpleFlowHTTPSetIf()
	require.Len(t, flow.Nodes, 3)

	names := make(map[string]bool)
	for _, node := range flow.Nodes {
		names[node["name"].(string)] = true
	}
	for from := range flow.Connections {
		require.True(t, names[from], "connection source %q must be a node", from)
	}
}

func TestCatalogMarshals(t *testing.T) {
	raw, err := json.Marshal(Catalog())
	require.NoError(t, err)
	require.Contains(t, string(raw), "n8n-nodes-base.set")
	require.Contains(t, string(raw), "http_set_if")
}
