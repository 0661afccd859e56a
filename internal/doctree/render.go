package doctree

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render serializes the tree as an HTML fragment. Attribute order is fixed
// (id, class, href) so repeated runs over the same input produce identical
// bytes.
func (t *Tree) Render(w io.Writer) error {
	n := t.toHTML(t.Root)
	if err := html.Render(w, n); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	return nil
}

// RenderBytes is Render into a fresh buffer.
func (t *Tree) RenderBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Tree) toHTML(id NodeID) *html.Node {
	nd := &t.nodes[id]
	if nd.Kind == KindText {
		return &html.Node{Type: html.TextNode, Data: nd.Text}
	}
	out := &html.Node{
		Type:     html.ElementNode,
		Data:     nd.Tag,
		DataAtom: atom.Lookup([]byte(nd.Tag)),
	}
	if nd.ID != "" {
		out.Attr = append(out.Attr, html.Attribute{Key: "id", Val: nd.ID})
	}
	if nd.Class != "" {
		out.Attr = append(out.Attr, html.Attribute{Key: "class", Val: nd.Class})
	}
	if nd.Href != "" {
		out.Attr = append(out.Attr, html.Attribute{Key: "href", Val: nd.Href})
	}
	for _, c := range nd.Children {
		if t.nodes[c].detached {
			continue
		}
		out.AppendChild(t.toHTML(c))
	}
	return out
}
