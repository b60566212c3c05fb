// Package diff computes structural deltas between two JSON documents
// representing the same workflow at different times.
//
// Documents are walked by path (object keys and array indices, joined
// with dots). Arrays are compared positionally: index-as-path, no
// content-based matching. A change below a path where the two sides
// still have the same shape is reported at the shallowest path that
// actually differs, with both raw values attached.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// Result is the raw outcome of one diff computation, before snapshot
// timestamps are attached by the context store.
type Result struct {
	Added   []string
	Removed []string
	Changed map[string]domain.ValueChange
}

// Empty reports whether the two documents were structurally identical.
func (r *Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Diff compares two JSON documents. Pure and deterministic: the same
// input pair always yields the same result, and neither input is
// modified. Returns *domain.MalformedInputError if either side is not
// parseable JSON.
func Diff(oldJSON, newJSON []byte) (*Result, error) {
	var oldDoc, newDoc any
	if err := json.Unmarshal(oldJSON, &oldDoc); err != nil {
		return nil, &domain.MalformedInputError{Side: "old", Err: err}
	}
	if err := json.Unmarshal(newJSON, &newDoc); err != nil {
		return nil, &domain.MalformedInputError{Side: "new", Err: err}
	}

	r := &Result{Changed: make(map[string]domain.ValueChange)}
	walk(r, "", oldDoc, newDoc)
	sort.Strings(r.Added)
	sort.Strings(r.Removed)
	return r, nil
}

func walk(r *Result, path string, oldVal, newVal any) {
	switch o := oldVal.(type) {
	case map[string]any:
		n, ok := newVal.(map[string]any)
		if !ok {
			// Type changed (object -> something else): report at this
			// path with both raw values, do not recurse.
			r.change(path, oldVal, newVal)
			return
		}
		for key, ov := range o {
			child := join(path, key)
			if nv, present := n[key]; present {
				walk(r, child, ov, nv)
			} else {
				r.Removed = append(r.Removed, child)
			}
		}
		for key := range n {
			if _, present := o[key]; !present {
				r.Added = append(r.Added, join(path, key))
			}
		}
	case []any:
		n, ok := newVal.([]any)
		if !ok {
			r.change(path, oldVal, newVal)
			return
		}
		for i := range o {
			child := join(path, strconv.Itoa(i))
			if i < len(n) {
				walk(r, child, o[i], n[i])
			} else {
				r.Removed = append(r.Removed, child)
			}
		}
		for i := len(o); i < len(n); i++ {
			r.Added = append(r.Added, join(path, strconv.Itoa(i)))
		}
	default:
		if !leafEqual(oldVal, newVal) {
			r.change(path, oldVal, newVal)
		}
	}
}

func (r *Result) change(path string, oldVal, newVal any) {
	if path == "" {
		path = "."
	}
	r.Changed[path] = domain.ValueChange{Old: rawOf(oldVal), New: rawOf(newVal)}
}

// leafEqual compares two scalar leaves (or a scalar against a
// container, which is never equal). Numbers decode to float64 so plain
// equality is sufficient.
func leafEqual(a, b any) bool {
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	ra, raErr := json.Marshal(a)
	rb, rbErr := json.Marshal(b)
	if raErr != nil || rbErr != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}

func rawOf(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return raw
}

func join(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + "." + segment
}
