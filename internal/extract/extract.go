package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/depdf/internal/headers"
)

// Document is the plain-text article extracted from a page. Empty Title or
// Author means the page did not provide one.
type Document struct {
	Title  string
	Author string
	Text   string
}

// noiseTags are removed from the tree before any text is read. They are
// page structure, never article content.
var noiseTags = "script, style, noscript, header, footer, nav, aside, form"

// ContentSelectors are tried in order; the first selector with a non-empty
// match wins.
var ContentSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"#content",
	".story-body",
	".article-body",
}

// MirrorSelectors are appended to ContentSelectors for snapshot mirrors,
// which wrap the captured page in their own container.
var MirrorSelectors = []string{"#CONTENT", "div.CONTENT"}

// densityCandidates are scanned when no content selector matches.
var densityCandidates = "div, section"

// Enhanced extracts title, author and main text from an HTML page.
//
// The main text comes from the first matching content selector. When none
// match, the div or section with the most text is used, then the whole body.
// Every text node becomes its own line; lines are trimmed, inner whitespace
// collapsed and empty lines dropped, so the result never starts or ends with
// whitespace and never contains a blank line.
func Enhanced(input []byte, pageURL string) Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil || doc == nil {
		return Document{}
	}

	doc.Find(noiseTags).Remove()

	out := Document{
		Title:  findTitle(doc),
		Author: findAuthor(doc),
	}

	selectors := ContentSelectors
	if headers.IsSnapshotMirror(pageURL) {
		selectors = append(append([]string(nil), ContentSelectors...), MirrorSelectors...)
	}

	content := firstNonEmpty(doc, selectors)
	if content == nil {
		content = densest(doc)
	}
	if content == nil {
		if body := doc.Find("body").First(); body.Length() > 0 {
			content = body.Nodes[0]
		} else if len(doc.Nodes) > 0 {
			content = doc.Nodes[0]
		}
	}
	if content == nil {
		return out
	}

	var lines []string
	walkText(content, func(s string) {
		lines = append(lines, s)
	})
	out.Text = Normalize(strings.Join(lines, "\n"))
	return out
}

func findTitle(doc *goquery.Document) string {
	t := doc.Find("head title").First()
	if t.Length() == 0 {
		t = doc.Find("title").First()
	}
	if t.Length() == 0 {
		return ""
	}
	return collapse(t.Text())
}

func findAuthor(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="author"]`, `meta[property="article:author"]`} {
		m := doc.Find(sel).First()
		if m.Length() == 0 {
			continue
		}
		if v, ok := m.Attr("content"); ok {
			if v = collapse(v); v != "" {
				return v
			}
		}
		return ""
	}
	return ""
}

func firstNonEmpty(doc *goquery.Document, selectors []string) *html.Node {
	for _, sel := range selectors {
		var found *html.Node
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if textLen(s.Nodes[0]) > 0 {
				found = s.Nodes[0]
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// densest returns the candidate container with the most text. Ties keep the
// earliest element in document order.
func densest(doc *goquery.Document) *html.Node {
	var best *html.Node
	max := 0
	doc.Find(densityCandidates).Each(func(_ int, s *goquery.Selection) {
		if n := textLen(s.Nodes[0]); n > max {
			max = n
			best = s.Nodes[0]
		}
	})
	return best
}

// textLen counts the runes of all trimmed text under n.
func textLen(n *html.Node) int {
	total := 0
	walkText(n, func(s string) {
		total += utf8.RuneCountInString(s)
	})
	return total
}

// walkText calls fn for every non-blank text node under n, trimmed, in
// document order.
func walkText(n *html.Node, fn func(string)) {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			fn(s)
		}
		return
	}
	if n.Type == html.CommentNode {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// Normalize applies the line rules used for every extracted text: trim each
// line, collapse inner whitespace runs, drop empty lines, NFC-normalize.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if c := collapse(line); c != "" {
			out = append(out, c)
		}
	}
	return norm.NFC.String(strings.Join(out, "\n"))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
