// Package jsvar pulls a single variable's value out of inline script
// text. The portal embeds its SPA navigation data as a JSON-like literal
// assigned to a well-known variable inside the first <head> script; this
// locates the balanced bracket span that follows the assignment without
// needing a javascript parser.
package jsvar

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// SyntaxError reports script text that violates the structural
// assumptions: no opener after the assignment, a closer that doesn't
// match the innermost opener, or brackets left open at end of input.
// It indicates a portal layout change, retrying cannot fix it.
type SyntaxError struct {
	Variable string
	Offset   int
	Detail   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsvar: malformed source for %q at offset %d: %s", e.Variable, e.Offset, e.Detail)
}

var openers = map[byte]byte{')': '(', ']': '[', '}': '{'}

func isOpener(c byte) bool { return c == '(' || c == '[' || c == '{' }
func isCloser(c byte) bool { return c == ')' || c == ']' || c == '}' }

// Extract locates `name = <value>` in script and returns the balanced
// bracket span, delimiters included, as raw JSON.
func Extract(name, script string) (json.RawMessage, error) {
	assign := regexp.MustCompile(regexp.QuoteMeta(name) + `\s*=\s*`)
	loc := assign.FindStringIndex(script)
	if loc == nil {
		return nil, &SyntaxError{Variable: name, Detail: "assignment not found"}
	}

	start := loc[1]
	end, err := matchSpan(name, script, start)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(script[start : end+1]), nil
}

// ExtractInto decodes the extracted span into v.
func ExtractInto(name, script string, v any) error {
	raw, err := Extract(name, script)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &SyntaxError{Variable: name, Detail: fmt.Sprintf("decode: %v", err)}
	}
	return nil
}

// matchSpan scans from the opener at start and returns the index of the
// closer that balances it. String literals inside the span are skipped so
// bracket characters in them don't disturb the stack.
func matchSpan(name, script string, start int) (int, error) {
	if start >= len(script) || !isOpener(script[start]) {
		got := "end of input"
		if start < len(script) {
			got = fmt.Sprintf("%q", script[start])
		}
		return 0, &SyntaxError{Variable: name, Offset: start, Detail: "expected ( [ or {, got " + got}
	}

	var stack []byte
	stack = append(stack, script[start])

	i := start + 1
	for i < len(script) {
		c := script[i]
		switch {
		case c == '"' || c == '\'':
			end, ok := skipString(script, i)
			if !ok {
				return 0, &SyntaxError{Variable: name, Offset: i, Detail: "unterminated string literal"}
			}
			i = end
		case isOpener(c):
			stack = append(stack, c)
		case isCloser(c):
			top := stack[len(stack)-1]
			if top != openers[c] {
				return 0, &SyntaxError{
					Variable: name,
					Offset:   i,
					Detail:   fmt.Sprintf("expected closer for %q, got %q", top, c),
				}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, nil
			}
		}
		i++
	}

	return 0, &SyntaxError{
		Variable: name,
		Offset:   len(script),
		Detail:   fmt.Sprintf("expected closer for %q, got end of input", stack[len(stack)-1]),
	}
}

// skipString returns the index of the closing quote.
func skipString(s string, start int) (int, bool) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i, true
		}
	}
	return 0, false
}
