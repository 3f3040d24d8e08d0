package inputprocessor

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedTags = map[string]bool{
	"script": true, "style": true, "head": true, "nav": true,
	"footer": true, "aside": true, "form": true, "noscript": true,
}

// ExtractText returns the readable text of an HTML document with block
// elements separated by blank lines. Input that does not parse is returned
// unchanged.
func ExtractText(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if isBlockElement(n) && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n\n") {
			b.WriteString("\n\n")
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "address", "article", "blockquote", "dd", "div", "dl", "dt", "figcaption", "figure",
		"h1", "h2", "h3", "h4", "h5", "h6", "header", "hr", "li", "main", "ol", "p", "pre",
		"section", "table", "tr", "ul", "br":
		return true
	}
	return false
}
