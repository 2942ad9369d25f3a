package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// MaxContentLength bounds stored content, counted in runes.
const MaxContentLength = 4000

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Normalize strips markup from raw, collapses whitespace and truncates the
// result to MaxContentLength runes.
func Normalize(raw string) string {
	return NormalizeN(raw, MaxContentLength)
}

// NormalizeN is Normalize with an explicit rune limit; limit <= 0 keeps
// the whole text.
func NormalizeN(raw string, limit int) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := collapseWhitespace(norm.NFC.String(htmlToText(raw)))
	return truncateRunes(text, limit)
}

func htmlToText(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return tagPattern.ReplaceAllString(raw, " ")
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

// writeText joins text nodes with spaces so adjacent block elements do not
// run together.
func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
