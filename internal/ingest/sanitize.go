package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips unsafe tags and attributes from feed-supplied
// description HTML before it is persisted.
func SanitizeHTML(html string) string {
	return htmlPolicy.Sanitize(html)
}

// HTMLToText converts HTML to plain text, collapsing whitespace. The
// matcher runs over this text form.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// sanitizeUTF8 drops invalid byte sequences that occasionally leak
// through feed payloads.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
