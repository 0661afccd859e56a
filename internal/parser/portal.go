package parser

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lawtext/canon/internal/doctree"
	"golang.org/x/net/html"
)

var (
	artHrefRe = regexp.MustCompile(`^#art_([0-9]+[a-z]*)$`)
	fnIDRe    = regexp.MustCompile(`^fn-?(\d+)$`)
)

// ParsePortal converts scraped portal HTML into the initial block tree.
// Recognized sub-markup: headings whose anchor child encodes a provision
// reference (#art_<id>), inline footnote anchors (#fn-<n>), footnote list
// entries (id="fn-<n>") and nested definition lists carrying enumerations.
func ParsePortal(r io.Reader, opt Options, log *slog.Logger) (*doctree.Tree, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse portal html: %w", err)
	}

	// Selector alternatives are tried in order, not in document order, so a
	// specific law container wins over the body fallback.
	var sel *goquery.Selection
	for _, one := range strings.Split(opt.ContainerSelector, ",") {
		s := doc.Find(strings.TrimSpace(one)).First()
		if s.Length() > 0 {
			sel = s
			break
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("portal html: no container matched %q", opt.ContainerSelector)
	}

	t := doctree.New()
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			buildPortalBlock(t, t.Root, n, log)
		}
	})
	if len(t.Blocks()) == 0 {
		return nil, fmt.Errorf("portal html: container is empty")
	}
	return t, nil
}

func buildPortalBlock(t *doctree.Tree, parent doctree.NodeID, n *html.Node, log *slog.Logger) {
	switch {
	case n.Type == html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			blk := t.NewElement("p")
			t.Append(blk, t.NewText(s))
			t.Append(parent, blk)
		}
	case n.Type != html.ElementNode:
		// Comments and the like.
	case isHeadingTag(n.Data):
		blk := t.NewElement(n.Data)
		if id := provisionAnchorID(n); id != "" {
			t.Node(blk).ID = "provision-" + id
			t.AddClass(blk, "provision")
		}
		appendInline(t, blk, n)
		normalizeArtAnchors(t, blk)
		t.Append(parent, blk)
	case n.Data == "div" || n.Data == "section" || n.Data == "article" || n.Data == "main":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			buildPortalBlock(t, parent, c, log)
		}
	case n.Data == "dl":
		buildEnumeration(t, parent, n, log)
	case n.Data == "hr":
		blk := t.NewElement("hr")
		t.Append(parent, blk)
	default:
		blk := t.NewElement("p")
		if id := attr(n, "id"); id != "" {
			if m := fnIDRe.FindStringSubmatch(id); m != nil {
				// Portal footnote entry: synthesize the leading
				// superscript marker the merger expects.
				t.AddClass(blk, "footnote")
				sup := t.NewElement("sup")
				t.Append(sup, t.NewText(m[1]))
				t.Append(blk, sup)
			} else {
				t.Node(blk).ID = id
			}
		}
		appendInline(t, blk, n)
		if len(t.Node(blk).Children) > 0 {
			t.Append(parent, blk)
		}
	}
}

// buildEnumeration flattens a definition list: each dt becomes a marker
// block, each dd a content block; nested lists recurse.
func buildEnumeration(t *doctree.Tree, parent doctree.NodeID, dl *html.Node, log *slog.Logger) {
	for c := dl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			blk := t.NewElement("p")
			appendInline(t, blk, c)
			t.Append(parent, blk)
		case "dd":
			if hasChildElement(c, "dl") {
				blk := t.NewElement("p")
				appendInlineShallow(t, blk, c)
				if len(t.Node(blk).Children) > 0 {
					t.Append(parent, blk)
				}
				for g := c.FirstChild; g != nil; g = g.NextSibling {
					if g.Type == html.ElementNode && g.Data == "dl" {
						buildEnumeration(t, parent, g, log)
					}
				}
			} else {
				blk := t.NewElement("p")
				appendInline(t, blk, c)
				t.Append(parent, blk)
			}
		}
	}
}

// appendInline copies the inline content of n (text, anchors, sup/sub) into
// block. Footnote anchors keep their target for the resolver to rewrite.
func appendInline(t *doctree.Tree, block doctree.NodeID, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		copyInline(t, block, c)
	}
}

// appendInlineShallow is appendInline without descending into nested dl
// elements.
func appendInlineShallow(t *doctree.Tree, block doctree.NodeID, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "dl" {
			continue
		}
		copyInline(t, block, c)
	}
}

func copyInline(t *doctree.Tree, parent doctree.NodeID, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Data != "" {
			t.Append(parent, t.NewText(collapseSpace(n.Data)))
		}
	case html.ElementNode:
		switch n.Data {
		case "a":
			a := t.NewElement("a")
			t.Node(a).Href = attr(n, "href")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				copyInline(t, a, c)
			}
			t.Append(parent, a)
		case "sup", "sub":
			el := t.NewElement(n.Data)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				copyInline(t, el, c)
			}
			t.Append(parent, el)
		case "br":
			t.Append(parent, t.NewText(" "))
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				copyInline(t, parent, c)
			}
		}
	}
}

// normalizeArtAnchors turns upstream provision anchors (#art_<id>) into
// self-links against the canonical identifier.
func normalizeArtAnchors(t *doctree.Tree, blk doctree.NodeID) {
	t.Walk(blk, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind == doctree.KindElement && nd.Tag == "a" {
			if m := artHrefRe.FindStringSubmatch(nd.Href); m != nil {
				nd.Href = "#provision-" + m[1]
			}
		}
		return true
	})
}

func provisionAnchorID(n *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if m := artHrefRe.FindStringSubmatch(attr(n, "href")); m != nil {
				found = m[1]
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func isHeadingTag(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func hasChildElement(n *html.Node, tag string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRe.ReplaceAllString(s, " ")
}
