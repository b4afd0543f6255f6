// Package roster encodes the four-seat roster of a reservation into the
// free-text description of its calendar event and decodes it back.
//
// The text is a list of "Key: Value" lines. Lines the codec does not know
// about are carried through untouched, so operators can annotate events by
// hand without the service destroying their notes.
package roster

import (
	"sort"
	"strings"
)

// FieldMap holds decoded "Key: Value" pairs.
type FieldMap map[string]string

// Decode extracts every field of text. A line is a field when it contains
// a colon; the first colon separates key from value and both are trimmed.
// When a key repeats, the first occurrence wins.
func Decode(text string) FieldMap {
	fields := FieldMap{}
	for _, line := range splitLines(text) {
		key, value, ok := splitField(line)
		if !ok {
			continue
		}
		if _, dup := fields[key]; dup {
			continue
		}
		fields[key] = value
	}
	return fields
}

// Encode rewrites the lines whose key appears in patch and keeps every
// other line byte-identical. Patched keys that have no line yet are
// appended in canonical order. An empty value keeps its line.
func Encode(lines []string, patch FieldMap) string {
	out := make([]string, 0, len(lines)+len(patch))
	written := make(map[string]bool, len(patch))
	for _, line := range lines {
		key, _, ok := splitField(line)
		if ok {
			if value, patched := patch[key]; patched {
				out = append(out, formatField(key, value))
				written[key] = true
				continue
			}
		}
		out = append(out, line)
	}
	var rest []string
	for key := range patch {
		if !written[key] {
			rest = append(rest, key)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		oi, oj := canonicalRank(rest[i]), canonicalRank(rest[j])
		if oi != oj {
			return oi < oj
		}
		return rest[i] < rest[j]
	})
	for _, key := range rest {
		out = append(out, formatField(key, patch[key]))
	}
	return strings.Join(out, "\n")
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func splitField(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func formatField(key, value string) string {
	if value == "" {
		return key + ":"
	}
	return key + ": " + value
}

func canonicalRank(key string) int {
	for i, k := range canonicalOrder {
		if k == key {
			return i
		}
	}
	return len(canonicalOrder)
}
