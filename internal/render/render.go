// Package render implements {{variable}} substitution for notification
// message templates. Rendering is tolerant by design: a missing variable
// leaves the literal placeholder in place instead of failing, so a single
// absent field never blocks a whole message.
package render

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{key}} placeholders. Keys are identifier-like
// with optional dots; surrounding whitespace inside the braces is allowed
// ({{ name }} and {{name}} are equivalent).
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render substitutes {{key}} placeholders in template with values from
// vars. Unmatched placeholders are kept literally, which also makes Render
// idempotent: re-rendering an already-rendered string with the same vars is
// a no-op on the remainder.
func Render(template string, vars map[string]string) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := vars[key]; ok {
			return val
		}
		return match
	})
}

// Preview returns the first n runes of a rendered body, for audit rows.
func Preview(body string, n int) string {
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	return string(runes[:n])
}
