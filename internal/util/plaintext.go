package util

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText converts rich-text note content (HTML from the note editor) into
// whitespace-normalized plain text. Content without markup is returned
// normalized but otherwise unchanged.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return collapseSpace(content)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return collapseSpace(content)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "tr":
				buf.WriteString(" ")
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "h1", "h2", "h3", "h4", "tr":
				buf.WriteString(" ")
			}
		}
	}

	walk(doc)
	return collapseSpace(buf.String())
}

// collapseSpace trims and collapses internal whitespace runs to single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
