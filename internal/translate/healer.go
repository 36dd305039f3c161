package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable marks a translation result that could not be restored to
// valid JSON after healing. It is terminal for the whole document: a
// malformed document cannot be safely merged field-by-field with the input.
var ErrUnparseable = errors.New("unparseable translation result")

var fenceLineRe = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9]*[ \t]*\r?\n?")

// StripFences removes markdown code-fence markers that models wrap around
// JSON output.
func StripFences(text string) string {
	return strings.TrimSpace(fenceLineRe.ReplaceAllString(text, ""))
}

// Heal applies best-effort syntactic repairs to the concatenation of
// translated segments. It assumes the only damage is fencing, truncation and
// boundary artifacts from chunked translation, not arbitrary corruption.
// Every repair tracks string-literal state the same way the chunker does, so
// brackets, commas and braces inside translated text are never rewritten.
// Heal is idempotent: healing an already-healed text changes nothing.
func Heal(text string) string {
	s := StripFences(text)
	if s == "" {
		return s
	}

	// Trailing commas can stack, so strip to a fixpoint.
	for {
		next := stripStructuralCommas(s)
		if next == s {
			break
		}
		s = next
	}

	s = joinSeams(s)

	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		s = "{" + s
	}

	// A comma at the very end would sit before the closers appended below,
	// unless it is content inside an unterminated string.
	s = strings.TrimRight(s, " \t\r\n")
	for strings.HasSuffix(s, ",") {
		if _, inString, _ := scanOpeners(s[:len(s)-1]); inString {
			break
		}
		s = strings.TrimRight(s[:len(s)-1], " \t\r\n")
	}

	// Close what truncation left open: drop a dangling escape, terminate an
	// open string, then append closers innermost first.
	for {
		open, inString, pendingEscape := scanOpeners(s)
		if pendingEscape {
			s = s[:len(s)-1]
			continue
		}
		if inString {
			s += `"`
			continue
		}
		for i := len(open) - 1; i >= 0; i-- {
			if open[i] == '[' {
				s += "]"
			} else {
				s += "}"
			}
		}
		break
	}

	return s
}

// Parse is the mandatory strict parse after healing.
func Parse(text string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return value, nil
}

// scanOpeners walks s with escape-aware string tracking and returns the stack
// of unclosed openers, whether the scan ends inside a string literal, and
// whether a backslash escape consumed the final byte.
func scanOpeners(s string) (open []byte, inString, pendingEscape bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inString {
				if i == len(s)-1 {
					pendingEscape = true
				}
				i++
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				open = append(open, s[i])
			}
		case '}', ']':
			if !inString && len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}
	return open, inString, pendingEscape
}

// stripStructuralCommas removes commas that sit, outside any string literal,
// directly before a closing brace or bracket.
func stripStructuralCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if inString {
				b.WriteByte(c)
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
				continue
			}
		case '"':
			inString = !inString
		case ',':
			if !inString {
				j := i + 1
				for j < len(s) && isJSONSpace(s[j]) {
					j++
				}
				if j < len(s) && (s[j] == '}' || s[j] == ']') {
					continue
				}
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// joinSeams inserts the comma that chunked translation drops between
// adjacent top-level objects or arrays. Closers inside strings are content.
func joinSeams(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if inString {
				b.WriteByte(c)
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
				continue
			}
		case '"':
			inString = !inString
		case '}', ']':
			if !inString {
				b.WriteByte(c)
				j := i + 1
				for j < len(s) && isJSONSpace(s[j]) {
					j++
				}
				if j < len(s) && ((c == '}' && s[j] == '{') || (c == ']' && s[j] == '[')) {
					b.WriteByte(',')
				}
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
