package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// NormalizeScamType maps a free-text scam-type label to its canonical
// key form: trimmed and Unicode case-folded, inner whitespace collapsed
// to single hyphens. "Phishing" and "phishing " normalize to the same
// key. Returns "" for labels that are empty after trimming.
func NormalizeScamType(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return ""
	}
	folded := foldCaser.String(trimmed)
	return strings.Join(strings.Fields(folded), "-")
}

// DisplayScamType returns the human-readable form of a label: trimmed,
// with the original casing preserved
func DisplayScamType(label string) string {
	return strings.TrimSpace(label)
}
