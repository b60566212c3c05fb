package diff

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

func TestDiffIdenticalDocumentsIsEmpty(t *testing.T) {
	doc := []byte(`{"name":"wf","nodes":[{"id":"a","parameters":{"url":"https://example.com"}}],"active":true}`)

	r, err := Diff(doc, doc)
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Empty(t, r.Added)
	assert.Empty(t, r.Removed)
	assert.Empty(t, r.Changed)
}

func TestDiffAppendedArrayElement(t *testing.T) {
	oldDoc := []byte(`{"nodes":[{"id":"a"}]}`)
	newDoc := []byte(`{"nodes":[{"id":"a"},{"id":"b"}]}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{"nodes.1"}, r.Added)
	assert.Empty(t, r.Removed)
	assert.Empty(t, r.Changed)
}

func TestDiffRemovedKey(t *testing.T) {
	oldDoc := []byte(`{"settings":{"timezone":"UTC","retries":3}}`)
	newDoc := []byte(`{"settings":{"timezone":"UTC"}}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings.retries"}, r.Removed)
	assert.Empty(t, r.Added)
}

func TestDiffChangedLeaf(t *testing.T) {
	oldDoc := []byte(`{"nodes":[{"id":"a","name":"Old"}]}`)
	newDoc := []byte(`{"nodes":[{"id":"a","name":"New"}]}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	require.Contains(t, r.Changed, "nodes.0.name")
	c := r.Changed["nodes.0.name"]
	assert.JSONEq(t, `"Old"`, string(c.Old))
	assert.JSONEq(t, `"New"`, string(c.New))
}

func TestDiffTypeChangeReportedNotRecursed(t *testing.T) {
	oldDoc := []byte(`{"connections":{"a":["b"]}}`)
	newDoc := []byte(`{"connections":{"a":{"main":["b"]}}}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	require.Len(t, r.Changed, 1)
	require.Contains(t, r.Changed, "connections.a")
	assert.Empty(t, r.Added)
	assert.Empty(t, r.Removed)
}

func TestDiffNumberEquality(t *testing.T) {
	oldDoc := []byte(`{"typeVersion":2}`)
	newDoc := []byte(`{"typeVersion":2.0}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	assert.True(t, r.Empty(), "2 and 2.0 decode to the same value")
}

func TestDiffChangedPathsExistOnBothSides(t *testing.T) {
	oldDoc := []byte(`{"a":1,"b":{"c":"x"},"d":[1,2,3]}`)
	newDoc := []byte(`{"a":2,"b":{"c":"y"},"d":[1,9]}`)

	r, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	for p, c := range r.Changed {
		assert.NotEmpty(t, c.Old, "changed path %s must carry old value", p)
		assert.NotEmpty(t, c.New, "changed path %s must carry new value", p)
	}
	assert.Equal(t, []string{"d.2"}, r.Removed)
	assert.Contains(t, r.Changed, "a")
	assert.Contains(t, r.Changed, "b.c")
	assert.Contains(t, r.Changed, "d.1")
}

func TestDiffMalformedInput(t *testing.T) {
	_, err := Diff([]byte(`{not json`), []byte(`{}`))
	var malformed *domain.MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "old", malformed.Side)

	_, err = Diff([]byte(`{}`), []byte(`also not json`))
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "new", malformed.Side)
}

func TestDiffDeterministic(t *testing.T) {
	oldDoc := []byte(`{"z":1,"m":{"k1":1,"k2":2,"k3":3},"a":[1,2]}`)
	newDoc := []byte(`{"m":{"k2":2,"k4":4},"a":[1],"q":true}`)

	first, err := Diff(oldDoc, newDoc)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Diff(oldDoc, newDoc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderStatesPositionalComparison(t *testing.T) {
	d := &domain.WorkflowDiff{
		Added:   []string{"nodes.1"},
		Changed: map[string]domain.ValueChange{"name": {Old: json.RawMessage(`"a"`), New: json.RawMessage(`"b"`)}},
	}
	out := Render(d)
	assert.Contains(t, out, "+ nodes.1")
	assert.Contains(t, out, `~ name: "a" -> "b"`)
	assert.Contains(t, out, "arrays compared by position")
}

func TestRenderMultilineStringAsLineDiff(t *testing.T) {
	oldCode := "return items;\nconsole.log('a');\n"
	newCode := "return items;\nconsole.log('b');\n"
	oldRaw, _ := json.Marshal(oldCode)
	newRaw, _ := json.Marshal(newCode)

	d := &domain.WorkflowDiff{
		Changed: map[string]domain.ValueChange{
			"nodes.0.parameters.functionCode": {Old: oldRaw, New: newRaw},
		},
	}
	out := Render(d)
	assert.True(t, strings.Contains(out, "- console.log('a');"), "got:\n%s", out)
	assert.True(t, strings.Contains(out, "+ console.log('b');"), "got:\n%s", out)
}
