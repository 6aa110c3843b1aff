package endpoints

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pagelens/pagelens/pkg/jstext"
)

var (
	loggingCallRe = regexp.MustCompile(`\bconsole\s*\.\s*(?:log|debug|info|warn|error|trace)\s*\([^)]*\)\s*;?`)

	whitespaceRe = regexp.MustCompile(`\s+`)

	assignmentRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*\s*=\s*[A-Za-z_$][\w$]*$`)
)

// reservedWords are JavaScript keywords and literals that are never
// endpoints on their own.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "implements": true, "import": true, "instanceof": true,
	"interface": true, "let": true, "new": true, "null": true,
	"package": true, "private": true, "protected": true, "public": true,
	"return": true, "static": true, "super": true, "switch": true,
	"this": true, "throw": true, "true": true, "typeof": true,
	"undefined": true, "void": true, "while": true, "with": true,
	"yield": true, "NaN": true, "Infinity": true,
}

// clean strips comments and logging calls and collapses whitespace.
func clean(content string) string {
	s := jstext.Strip(content)
	s = loggingCallRe.ReplaceAllString(s, " ")
	return whitespaceRe.ReplaceAllString(s, " ")
}

// normalize trims quotes, escape sequences and whitespace around a match.
func normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"'`")
	v = strings.ReplaceAll(v, `\/`, "/")
	v = strings.Trim(v, `\`)
	v = strings.TrimSpace(v)
	return strings.Trim(v, "\"'`")
}

// keep reports whether a normalized candidate survives the length bounds
// and the denylist.
func keep(v string) bool {
	if len(v) < minLength || len(v) >= maxLength {
		return false
	}
	if reservedWords[v] || reservedWords[strings.ToLower(v)] {
		return false
	}
	if isPunctuation(v) {
		return false
	}
	return !assignmentRe.MatchString(v)
}

func isPunctuation(v string) bool {
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
