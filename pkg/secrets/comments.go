package secrets

import (
	"regexp"

	"github.com/pagelens/pagelens/pkg/jstext"
)

// ContentType selects which comment syntax is blanked before scanning.
type ContentType string

const (
	ContentJavaScript ContentType = "javascript"
	ContentHTML       ContentType = "html"
	ContentCSS        ContentType = "css"
	ContentOther      ContentType = "other"
)

// ContentTypeFor guesses the content type from a MIME type or file name.
func ContentTypeFor(hint string) ContentType {
	switch {
	case containsAny(hint, "javascript", "ecmascript", ".js", ".mjs", ".cjs", ".jsx", ".ts"):
		return ContentJavaScript
	case containsAny(hint, "html", ".htm"):
		return ContentHTML
	case containsAny(hint, "css"):
		return ContentCSS
	}
	return ContentOther
}

var (
	htmlCommentRe = regexp.MustCompile(`<!--[\s\S]*?-->`)
	cssCommentRe  = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// blankComments overwrites comments with spaces. Newlines are kept so
// byte offsets and line numbers still refer to the original text.
func blankComments(text string, ct ContentType) string {
	var spans [][]int
	switch ct {
	case ContentJavaScript:
		return jstext.Blank(text)
	case ContentHTML:
		spans = htmlCommentRe.FindAllStringIndex(text, -1)
	case ContentCSS:
		spans = cssCommentRe.FindAllStringIndex(text, -1)
	default:
		return text
	}
	if len(spans) == 0 {
		return text
	}

	b := []byte(text)
	for _, sp := range spans {
		for i := sp[0]; i < sp[1]; i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}
