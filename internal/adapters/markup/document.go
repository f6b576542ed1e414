// Package markup wraps an HTML parser behind the handful of tree operations
// the merchant parsers need: find a node by predicate, walk to its parent or
// an enclosing element, step to following siblings, and read text.
package markup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed email body. It is read-only once parsed and safe to
// share between parsers.
type Document struct {
	doc *goquery.Document
	raw string
}

// Parse builds a document tree from raw markup. The HTML5 parser accepts
// malformed fragments, so errors only come from the reader.
func Parse(content string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	return &Document{doc: doc, raw: content}, nil
}

// WrapText wraps plain text in a single-node document so markup parsers can
// run over it.
func WrapText(text string) (*Document, error) {
	return Parse("<html><body><div>" + text + "</div></body></html>")
}

// Raw returns the content the document was parsed from.
func (d *Document) Raw() string {
	return d.raw
}

// HTML renders the whole tree back to markup.
func (d *Document) HTML() string {
	out, err := d.doc.Html()
	if err != nil {
		return d.raw
	}
	return out
}

// Text returns the visible text with each text node trimmed and joined by a
// single space.
func (d *Document) Text() string {
	var parts []string
	for _, n := range d.doc.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
		return
	}
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// Find returns the first element matching a CSS selector, or nil.
func (d *Document) Find(selector string) *Node {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return &Node{n: sel.Get(0)}
}

// FindElement returns the first element with the given tag for which match
// returns true, in document order.
func (d *Document) FindElement(tag string, match func(*Node) bool) *Node {
	var found *Node
	d.doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := &Node{n: s.Get(0)}
		if match(node) {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindText returns the first text node whose content satisfies match.
func (d *Document) FindText(match func(string) bool) *Node {
	for _, root := range d.doc.Nodes {
		if n := findTextNode(root, match); n != nil {
			return &Node{n: n}
		}
	}
	return nil
}

func findTextNode(n *html.Node, match func(string) bool) *html.Node {
	if n.Type == html.TextNode && match(n.Data) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTextNode(c, match); found != nil {
			return found
		}
	}
	return nil
}
