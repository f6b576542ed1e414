package markup

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node is an element or text node inside a Document. Methods on a nil *Node
// return nil or "" so lookups can be chained and checked once at the end.
type Node struct {
	n *html.Node
}

// IsText reports whether the node is a text node.
func (n *Node) IsText() bool {
	return n != nil && n.n.Type == html.TextNode
}

// Tag returns the element name, or "" for text nodes.
func (n *Node) Tag() string {
	if n == nil || n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Text returns the node's text content. For elements this is the
// concatenation of all descendant text.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	if n.n.Type == html.TextNode {
		return n.n.Data
	}
	return goquery.NewDocumentFromNode(n.n).Text()
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Parent returns the enclosing element.
func (n *Node) Parent() *Node {
	if n == nil || n.n.Parent == nil || n.n.Parent.Type != html.ElementNode {
		return nil
	}
	return &Node{n: n.n.Parent}
}

// Closest returns the nearest ancestor element with the given tag, not
// including the node itself.
func (n *Node) Closest(tag string) *Node {
	if n == nil {
		return nil
	}
	for p := n.n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return &Node{n: p}
		}
	}
	return nil
}

// NextElement returns the next sibling element with the given tag, skipping
// text and other elements in between. An empty tag matches any element.
func (n *Node) NextElement(tag string) *Node {
	if n == nil {
		return nil
	}
	for s := n.n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && (tag == "" || s.Data == tag) {
			return &Node{n: s}
		}
	}
	return nil
}

// NextSiblings returns up to limit following siblings of any node type,
// including whitespace text nodes.
func (n *Node) NextSiblings(limit int) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for s := n.n.NextSibling; s != nil && len(out) < limit; s = s.NextSibling {
		out = append(out, &Node{n: s})
	}
	return out
}

// HTML renders the node, including its own tag.
func (n *Node) HTML() string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n.n); err != nil {
		return n.Text()
	}
	return buf.String()
}

// NormalizedStyle returns the style attribute lower-cased with all whitespace
// removed, so "font-weight:bold; color:#000000;" and
// "font-weight: bold;color:#000000" compare equal.
func (n *Node) NormalizedStyle() string {
	return NormalizeStyle(n.Attr("style"))
}

// NormalizeStyle lower-cases a CSS declaration list, drops whitespace and
// ensures a trailing semicolon.
func NormalizeStyle(style string) string {
	s := strings.ToLower(strings.Join(strings.Fields(style), ""))
	if s != "" && !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}
