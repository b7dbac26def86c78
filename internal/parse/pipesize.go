package parse

import (
	"regexp"
	"strings"
)

// Pipe sizes arrive from the ERP in whatever form the clerk typed them:
// `2"`, `2 in`, `2inch`, `2”`, `1-1/2 "`. Assignment matching compares
// canonical forms so a cosmetic difference does not defeat an exact match.

var (
	inchSuffixRe = regexp.MustCompile(`(?i)\s*(?:"|”|''|in(?:ch(?:es)?)?\.?)\s*$`)
	sizeRe       = regexp.MustCompile(`^\d+(?:[\-\s]\d+/\d+|[./]\d+|/\d+)?$`)
)

// NormalizePipeSize converts a pipe-size string to the canonical `N"` form.
// Strings that do not look like a size are returned trimmed and unchanged.
func NormalizePipeSize(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	body := inchSuffixRe.ReplaceAllString(trimmed, "")
	body = strings.TrimSpace(body)
	if !sizeRe.MatchString(body) {
		return trimmed
	}

	// "1 1/2" and "1-1/2" are the same mixed fraction.
	body = strings.ReplaceAll(body, " ", "-")
	return body + `"`
}

// SamePipeSize reports whether two pipe-size strings denote the same size.
func SamePipeSize(a, b string) bool {
	return NormalizePipeSize(a) == NormalizePipeSize(b)
}
