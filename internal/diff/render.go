package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// valuePreviewLimit caps single-line value rendering.
const valuePreviewLimit = 120

// Render produces the human-readable form of a diff, suitable both for
// prompt injection and for display next to the workflow JSON.
func Render(d *domain.WorkflowDiff) string {
	var b strings.Builder
	if d.Empty() {
		b.WriteString("No structural changes since the previous fetch.\n")
	} else {
		for _, p := range d.Added {
			fmt.Fprintf(&b, "+ %s\n", p)
		}
		for _, p := range d.Removed {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		for _, p := range sortedChangedPaths(d.Changed) {
			c := d.Changed[p]
			fmt.Fprintf(&b, "~ %s: %s\n", p, renderChange(c))
		}
	}
	b.WriteString("(arrays compared by position)\n")
	return b.String()
}

func sortedChangedPaths(changed map[string]domain.ValueChange) []string {
	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func renderChange(c domain.ValueChange) string {
	oldStr, oldIsStr := asString(c.Old)
	newStr, newIsStr := asString(c.New)
	if oldIsStr && newIsStr && (strings.Contains(oldStr, "\n") || strings.Contains(newStr, "\n")) {
		return "\n" + lineDiff(oldStr, newStr)
	}
	return fmt.Sprintf("%s -> %s", preview(c.Old), preview(c.New))
}

// lineDiff renders a line-oriented diff for multi-line string values,
// such as the code body of a function node.
func lineDiff(oldStr, newStr string) string {
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(oldStr, newStr)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var b strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "  + "
		case diffmatchpatch.DiffDelete:
			prefix = "  - "
		default:
			prefix = "    "
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func preview(raw json.RawMessage) string {
	s := string(raw)
	if len(s) > valuePreviewLimit {
		s = s[:valuePreviewLimit] + "..."
	}
	return s
}
