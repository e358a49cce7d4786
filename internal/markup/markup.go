// Package markup implements a minimal markup tree: text nodes and element
// nodes, parsed with the golang.org/x/net/html tokenizer and serialized back
// without any document model (no implicit html/head/body, no tag repair).
package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/JoobyPM/ellipsis-render/internal/stringutil"
)

// NodeType distinguishes text from element nodes.
type NodeType int

const (
	TextNode NodeType = iota
	ElementNode
)

// Attr is a single element attribute.
type Attr struct {
	Key string
	Val string
}

// Node is a text node (Data holds the decoded text) or an element node
// (Data holds the lower-case tag name).
type Node struct {
	Type     NodeType
	Data     string
	Attrs    []Attr
	Children []*Node
}

// Fragment is an ordered list of top-level nodes.
type Fragment struct {
	Nodes []*Node
}

// ErrParse is returned when the tokenizer fails before reaching end of input.
var ErrParse = errors.New("markup parse error")

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// rawTextElements hold text that is serialized without escaping.
var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "xmp": true,
}

// escaper works in a single pass; entities it emits are never re-escaped.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// textEscaper leaves quotes alone, as they are only significant in attributes.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape replaces &, <, > and " with their entity equivalents.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Parse tokenizes s into a Fragment. Unclosed elements are closed at end of
// input, stray end tags are ignored, comments and doctypes are dropped.
func Parse(s string) (*Fragment, error) {
	frag := &Fragment{}
	var stack []*Node

	appendNode := func(n *Node) {
		if len(stack) == 0 {
			frag.Nodes = append(frag.Nodes, n)
			return
		}
		top := stack[len(stack)-1]
		top.Children = append(top.Children, n)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %w", ErrParse, err)
			}
			return frag, nil

		case html.TextToken:
			appendNode(&Node{Type: TextNode, Data: string(z.Text())})

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			el := &Node{Type: ElementNode, Data: tok.Data}
			for _, a := range tok.Attr {
				el.Attrs = append(el.Attrs, Attr{Key: a.Key, Val: a.Val})
			}
			appendNode(el)
			if tt == html.StartTagToken && !voidElements[el.Data] {
				stack = append(stack, el)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Data == string(name) {
					stack = stack[:i]
					break
				}
			}

		case html.CommentToken, html.DoctypeToken:
			// dropped
		}
	}
}

// HasElements reports whether the fragment contains at least one element.
func (f *Fragment) HasElements() bool {
	for _, n := range f.Nodes {
		if n.Type == ElementNode {
			return true
		}
	}
	return false
}

// TextNodes returns every text node in document order.
func (f *Fragment) TextNodes() []*Node {
	var out []*Node
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Type == TextNode {
				out = append(out, n)
				continue
			}
			walk(n.Children)
		}
	}
	walk(f.Nodes)
	return out
}

// Text returns the concatenated text of all text nodes.
func (f *Fragment) Text() string {
	var b strings.Builder
	for _, n := range f.TextNodes() {
		b.WriteString(n.Data)
	}
	return b.String()
}

// ReplaceText rewrites the text nodes so that together they hold body (which
// must be a rune prefix of Text()) followed by suffix. The suffix lands in the
// node holding the last kept rune; later text nodes are emptied.
func (f *Fragment) ReplaceText(body, suffix string) {
	nodes := f.TextNodes()
	if len(nodes) == 0 {
		return
	}

	remaining := stringutil.RuneLen(body)
	placed := false
	for _, n := range nodes {
		if placed {
			n.Data = ""
			continue
		}
		size := stringutil.RuneLen(n.Data)
		if remaining > size {
			remaining -= size
			continue
		}
		n.Data = stringutil.Prefix(n.Data, remaining) + suffix
		placed = true
	}
	if !placed {
		last := nodes[len(nodes)-1]
		last.Data += suffix
	}
}

// Render serializes the fragment. Attribute values are escaped with Escape.
// Text escapes &, < and >, except inside raw text elements such as script
// and style where it is written as is. Void elements get no end tag.
func (f *Fragment) Render() string {
	var b strings.Builder
	for _, n := range f.Nodes {
		renderNode(&b, n, false)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, raw bool) {
	if n.Type == TextNode {
		if raw {
			b.WriteString(n.Data)
		} else {
			b.WriteString(textEscaper.Replace(n.Data))
		}
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(Escape(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	if voidElements[n.Data] {
		return
	}
	for _, c := range n.Children {
		renderNode(b, c, rawTextElements[n.Data])
	}
	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteByte('>')
}
