// Package jstext locates comments in JavaScript-like text without parsing
// it. String, template and regular expression literals are skipped, so a
// MIME wildcard such as "image/*" never opens a comment.
package jstext

import "strings"

// Span is a half-open byte range into the scanned text.
type Span struct {
	Start, End int
}

// Comments returns the block and line comment spans of src in order.
//
// A "//" only starts a comment at the beginning of a line or after
// whitespace or a statement boundary, and a "/*" directly after '*' is
// not a comment. Both keep unquoted URLs and "*/*" intact when the text
// is markup rather than script.
func Comments(src string) []Span {
	var out []Span
	n := len(src)
	var prev byte
	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(src, i)
			prev = c
		case c == '/' && i+1 < n && src[i+1] == '*' && (i == 0 || src[i-1] != '*'):
			end := n
			if j := strings.Index(src[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			out = append(out, Span{Start: i, End: end})
			i = end
		case c == '/' && i+1 < n && src[i+1] == '/' && lineBoundary(src, i):
			end := n
			if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
				end = i + j
			}
			out = append(out, Span{Start: i, End: end})
			i = end
		case c == '/' && regexAllowed(prev):
			i = skipRegex(src, i)
			prev = '/'
		default:
			if !isSpace(c) {
				prev = c
			}
			i++
		}
	}
	return out
}

// Blank overwrites every comment with spaces. Newlines are kept so byte
// offsets and line numbers still refer to the original text.
func Blank(src string) string {
	spans := Comments(src)
	if len(spans) == 0 {
		return src
	}
	b := []byte(src)
	for _, sp := range spans {
		for i := sp.Start; i < sp.End; i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// Strip removes every comment, leaving one space in its place.
func Strip(src string) string {
	spans := Comments(src)
	if len(spans) == 0 {
		return src
	}
	var sb strings.Builder
	sb.Grow(len(src))
	last := 0
	for _, sp := range spans {
		sb.WriteString(src[last:sp.Start])
		sb.WriteByte(' ')
		last = sp.End
	}
	sb.WriteString(src[last:])
	return sb.String()
}

// skipString returns the index just past the literal opening at i.
// Quoted strings end at an unescaped newline; templates may span lines.
func skipString(src string, i int) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch c := src[j]; {
		case c == '\\':
			j++
		case c == q:
			return j + 1
		case c == '\n' && q != '`':
			return j
		}
	}
	return len(src)
}

// skipRegex returns the index just past a regular expression literal
// opening at i, or i+1 when the slash does not close on the same line.
func skipRegex(src string, i int) int {
	inClass := false
	for j := i + 1; j < len(src); j++ {
		switch c := src[j]; {
		case c == '\\':
			j++
		case c == '\n':
			return i + 1
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '/':
			return j + 1
		}
	}
	return i + 1
}

// regexAllowed reports whether a slash after prev starts a regular
// expression rather than a division.
func regexAllowed(prev byte) bool {
	return prev == 0 || strings.IndexByte("(,=:[!&|?{};+-*%~^", prev) >= 0
}

func lineBoundary(src string, i int) bool {
	return i == 0 || strings.IndexByte(" \t\r\n;{}),", src[i-1]) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
