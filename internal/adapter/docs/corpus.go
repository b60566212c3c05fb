package docs

// BuiltinCorpus returns the reference passages shipped with the
// service. They cover the failure modes users ask about most; a
// deployment can Add its own documents on top.
func BuiltinCorpus() []Document {
	return []Document{
		{
			SourceID: "n8n-docs/http-request",
			Text: "The HTTP Request node fails with a timeout when the remote service does not answer within the configured " +
				"timeout (default 300s for most versions, but often lowered per node). Check the node's Options > Timeout setting " +
				"and whether the target URL is reachable from the n8n host. A 429 response means the remote API rate-limited the " +
				"request; add a Wait node or enable retry with backoff in the node settings.",
		},
		{
			SourceID: "n8n-docs/webhook",
			Text: "Webhook nodes register a production URL only while the workflow is active. A test URL works only during " +
				"'Listen for test event'. If calls to the production URL return 404, the workflow is probably deactivated, or a " +
				"path collision with another workflow's webhook exists.",
		},
		{
			SourceID: "n8n-docs/credentials",
			Text: "A node failing with 'Credentials not found' or 401 usually means the credential was deleted, renamed, or is " +
				"not shared with the owner of the workflow. Open the node, reselect the credential, and re-test the connection. " +
				"OAuth2 credentials expire and may need reconnecting.",
		},
		{
			SourceID: "n8n-docs/expressions",
			Text: "Expression errors like 'Cannot read property of undefined' happen when an expression such as {{$json.field}} " +
				"references a key the incoming item does not have. Inspect the input data of the failing node in the execution " +
				"view; use optional chaining {{$json.field?.sub}} or an IF node to guard missing keys.",
		},
		{
			SourceID: "n8n-docs/executions",
			Text: "Execution statuses: success, error, waiting, running. An execution stuck in waiting is paused on a Wait node " +
				"or a webhook continuation. Error executions record the failing node and its error message; open the execution " +
				"and click the red node to see input and output data at the point of failure.",
		},
		{
			SourceID: "n8n-docs/function-node",
			Text: "Function and Code nodes run JavaScript per item or once for all items. 'items is not defined' or syntax errors " +
				"abort the execution. Returned data must be an array of objects with a json key: " +
				"return items.map(item => ({ json: item.json }));",
		},
		{
			SourceID: "n8n-docs/if-node",
			Text: "The IF node routes items to the true or false output by its conditions. Comparing a number against a string " +
				"silently takes the false branch: set the comparison type to Number, or convert with a Set node first. Empty " +
				"input means neither branch runs.",
		},
		{
			SourceID: "n8n-docs/error-workflow",
			Text: "An error workflow is triggered by the Error Trigger node whenever a linked workflow fails. Use it to alert on " +
				"failures. The trigger payload includes the failing workflow id, execution id, and the error message of the node " +
				"that failed.",
		},
	}
}
