package collab

import (
	"encoding/json"
	"strings"

	"github.com/stemtutor/tutorflow/types"
)

// DecodeLenient recovers a structured value from free-form model output.
// It strips markdown fences, locates the outermost balanced JSON object or
// array, conservatively repairs invalid escape sequences, then unmarshals.
// Any failure is a permanent error: a response that cannot be decoded will
// not decode better on retry.
func DecodeLenient(raw string, v any) error {
	seg, ok := extractBalanced(stripFences(raw))
	if !ok {
		return types.Permanent("no JSON value found in response", nil)
	}

	repaired := repairEscapes(seg)

	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return types.Permanent("response JSON does not parse", err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence when present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	start := strings.Index(s, "```")
	rest := s[start+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); tag == "" || tag == "json" {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractBalanced returns the outermost balanced {...} or [...] segment.
// Brace counting is string-aware so delimiters inside string literals do not
// affect depth.
func extractBalanced(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// validEscape reports whether c is a recognized JSON escape character.
func validEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// repairEscapes escapes any backslash that does not already begin a
// recognized escape sequence. \u must be followed by four hex digits to
// count as recognized. Applies only inside string literals.
func repairEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inString = false
			b.WriteByte(c)
		case '\\':
			if i+1 < len(s) && validEscape(s[i+1]) {
				if s[i+1] == 'u' && !hexFollows(s, i+2) {
					b.WriteString(`\\`)
					continue
				}
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// hexFollows reports whether s[i:i+4] exists and is all hex digits.
func hexFollows(s string, i int) bool {
	if i+4 > len(s) {
		return false
	}
	for j := i; j < i+4; j++ {
		c := s[j]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
