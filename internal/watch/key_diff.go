package watch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/prefexport/internal/tree"
)

// KeyChange describes one setting that differs between two consecutive
// exports.
type KeyChange struct {
	// Kind is one of "added", "removed", or "changed".
	Kind string
	// Key is the dotted path of the setting. Nested dicts are flattened.
	Key string
	// Detail holds the value kind, or "old -> new" kinds for changes.
	Detail string
}

// KeyDiff compares two settings trees and returns the changes sorted by key.
func KeyDiff(prev, curr tree.Value) []KeyChange {
	prevMap := flatten("", prev)
	currMap := flatten("", curr)

	var changes []KeyChange

	for key, pv := range prevMap {
		if _, ok := currMap[key]; !ok {
			changes = append(changes, KeyChange{Kind: "removed", Key: key, Detail: pv.Kind().String()})
		}
	}

	for key, cv := range currMap {
		pv, existed := prevMap[key]
		if !existed {
			changes = append(changes, KeyChange{Kind: "added", Key: key, Detail: cv.Kind().String()})
			continue
		}

		if !tree.Equal(pv, cv) {
			changes = append(changes, KeyChange{
				Kind:   "changed",
				Key:    key,
				Detail: fmt.Sprintf("%s -> %s", pv.Kind(), cv.Kind()),
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })

	return changes
}

// KeyDiffSummary returns a human-readable one-line summary.
func KeyDiffSummary(changes []KeyChange) string {
	var added, removed, changed int

	for _, c := range changes {
		switch c.Kind {
		case "added":
			added++
		case "removed":
			removed++
		case "changed":
			changed++
		}
	}

	if added == 0 && removed == 0 && changed == 0 {
		return "no setting changes"
	}

	parts := make([]string, 0, 3)

	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d key(s) added", added))
	}

	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d key(s) removed", removed))
	}

	if changed > 0 {
		parts = append(parts, fmt.Sprintf("~%d key(s) changed", changed))
	}

	return strings.Join(parts, ", ")
}

// flatten maps every non-dict leaf to its dotted path. Empty dicts are kept
// as leaves so that adding or removing one is still reported.
func flatten(prefix string, v tree.Value) map[string]tree.Value {
	result := make(map[string]tree.Value)

	if v.Kind() != tree.KindDict {
		if prefix != "" {
			result[prefix] = v
		}

		return result
	}

	if v.Len() == 0 && prefix != "" {
		result[prefix] = v
		return result
	}

	for k, child := range v.Map() {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		for p, leaf := range flatten(path, child) {
			result[p] = leaf
		}
	}

	return result
}
