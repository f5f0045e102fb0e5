package rag

import (
	"regexp"
	"strings"
)

var (
	// RE2's \s leaves out \v and Unicode spaces such as U+00A0.
	newlineRun    = regexp.MustCompile(`[ \t\f\v\p{Zs}]*\n[\s\v\p{Zs}]*`)
	whitespaceRun = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
)

// Sanitize normalizes text extracted from an uploaded file: carriage returns are
// dropped, runs of newlines become a single newline, other whitespace runs become
// a single space, and the result is trimmed.
func Sanitize(raw string) string {
	text := strings.ReplaceAll(raw, "\r", "")
	text = newlineRun.ReplaceAllString(text, "\n")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
