package util

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Link is an outbound reference found in note markup, typically a record
// on an archive or census site
type Link struct {
	URL  string `json:"url"`
	Host string `json:"host"`
	Text string `json:"text,omitempty"`
}

// ExtractLinks returns the absolute http(s) links in rich-text content in
// document order, one per URL
func ExtractLinks(content string) []Link {
	if !strings.Contains(content, "<a") {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []Link
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if u := absoluteURL(attr(n, "href")); u != nil && !seen[u.String()] {
				seen[u.String()] = true
				links = append(links, Link{
					URL:  u.String(),
					Host: u.Host,
					Text: collapseSpace(nodeText(n)),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// absoluteURL keeps only absolute http and https URLs
func absoluteURL(href string) *url.URL {
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
