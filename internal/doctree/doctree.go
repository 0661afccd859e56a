// Package doctree holds the canonical document model: an arena of block and
// inline nodes addressed by stable integer indices. Structural passes relocate
// nodes by index updates, so there is no pointer aliasing between subtrees.
package doctree

import "strings"

// NodeID addresses a node inside a Tree's arena. IDs stay valid for the
// lifetime of the tree; removed nodes are detached, never reused.
type NodeID int

// Invalid marks the absence of a node.
const Invalid NodeID = -1

// Kind distinguishes element nodes from text nodes.
type Kind int

const (
	KindElement Kind = iota
	KindText
)

// Geometry carries the source-fragment position attributes a node was built
// from. Zero-valued for nodes on the markup path (no geometry available).
type Geometry struct {
	Page     int
	Left     float64
	Right    float64
	Top      float64 // top-left origin, smaller means higher on the page
	Bottom   float64
	FontSize float64
	Weight   int
	LinkTint bool // text carried the link-colored visual attribute

	// NotSubNum blocks subprovision reclassification for this node
	// (subscripts, unit superscripts, fraction parts).
	NotSubNum bool
}

// Node is one entry in the arena. Tag and attribute fields only apply to
// elements, Text only to text nodes.
type Node struct {
	Kind  Kind
	Tag   string
	ID    string // id attribute
	Class string // class attribute
	Href  string // href attribute (anchors)
	Text  string

	Geo Geometry

	Parent   NodeID
	Children []NodeID

	detached bool
}

// Tree is an arena-backed document tree with a single root element.
type Tree struct {
	nodes []Node
	Root  NodeID
}

// New returns a tree whose root is an empty container element.
func New() *Tree {
	t := &Tree{}
	t.Root = t.NewElement("div")
	return t
}

// Node returns a pointer into the arena. The pointer is invalidated by the
// next call that grows the arena; callers must not hold it across allocations.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len reports the number of allocated nodes, detached ones included.
func (t *Tree) Len() int { return len(t.nodes) }

// NewElement allocates a detached element node.
func (t *Tree) NewElement(tag string) NodeID {
	t.nodes = append(t.nodes, Node{Kind: KindElement, Tag: tag, Parent: Invalid})
	return NodeID(len(t.nodes) - 1)
}

// NewText allocates a detached text node.
func (t *Tree) NewText(text string) NodeID {
	t.nodes = append(t.nodes, Node{Kind: KindText, Text: text, Parent: Invalid})
	return NodeID(len(t.nodes) - 1)
}

// Append attaches child as the last child of parent. A child already attached
// elsewhere is detached first.
func (t *Tree) Append(parent, child NodeID) {
	t.Detach(child)
	t.nodes[child].Parent = parent
	t.nodes[child].detached = false
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
}

// InsertBefore attaches child immediately before sibling under sibling's
// parent.
func (t *Tree) InsertBefore(sibling, child NodeID) {
	parent := t.nodes[sibling].Parent
	if parent == Invalid {
		return
	}
	t.Detach(child)
	kids := t.nodes[parent].Children
	idx := indexOf(kids, sibling)
	if idx < 0 {
		return
	}
	kids = append(kids, Invalid)
	copy(kids[idx+1:], kids[idx:])
	kids[idx] = child
	t.nodes[parent].Children = kids
	t.nodes[child].Parent = parent
	t.nodes[child].detached = false
}

// Detach removes a node (with its subtree) from its parent. The node stays
// allocated and can be re-attached.
func (t *Tree) Detach(id NodeID) {
	parent := t.nodes[id].Parent
	if parent == Invalid {
		return
	}
	kids := t.nodes[parent].Children
	idx := indexOf(kids, id)
	if idx >= 0 {
		t.nodes[parent].Children = append(kids[:idx], kids[idx+1:]...)
	}
	t.nodes[id].Parent = Invalid
}

// Remove detaches a subtree and marks it dead so walks skip it.
func (t *Tree) Remove(id NodeID) {
	t.Detach(id)
	t.nodes[id].detached = true
}

// Removed reports whether a node was removed from the document.
func (t *Tree) Removed(id NodeID) bool { return t.nodes[id].detached }

// NextSibling returns the sibling after id, or Invalid.
func (t *Tree) NextSibling(id NodeID) NodeID {
	parent := t.nodes[id].Parent
	if parent == Invalid {
		return Invalid
	}
	kids := t.nodes[parent].Children
	idx := indexOf(kids, id)
	if idx < 0 || idx+1 >= len(kids) {
		return Invalid
	}
	return kids[idx+1]
}

// SwapWithPrev exchanges id with its previous sibling. No-op when id is the
// first child.
func (t *Tree) SwapWithPrev(id NodeID) bool {
	parent := t.nodes[id].Parent
	if parent == Invalid {
		return false
	}
	kids := t.nodes[parent].Children
	idx := indexOf(kids, id)
	if idx <= 0 {
		return false
	}
	kids[idx-1], kids[idx] = kids[idx], kids[idx-1]
	return true
}

// Blocks returns the direct children of the root in document order.
func (t *Tree) Blocks() []NodeID {
	out := make([]NodeID, len(t.nodes[t.Root].Children))
	copy(out, t.nodes[t.Root].Children)
	return out
}

// Walk visits id and its subtree depth-first in document order. Returning
// false from fn stops descending into that node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if t.nodes[id].detached {
		return
	}
	if !fn(id) {
		return
	}
	// Children may be mutated by fn; walk a snapshot.
	kids := make([]NodeID, len(t.nodes[id].Children))
	copy(kids, t.nodes[id].Children)
	for _, c := range kids {
		if t.nodes[c].Parent == id {
			t.Walk(c, fn)
		}
	}
}

// TextContent concatenates all text nodes under id.
func (t *Tree) TextContent(id NodeID) string {
	var sb strings.Builder
	t.Walk(id, func(n NodeID) bool {
		if t.nodes[n].Kind == KindText {
			sb.WriteString(t.nodes[n].Text)
		}
		return true
	})
	return sb.String()
}

// DirectText concatenates text under id, skipping superscript and subscript
// subtrees. Marker classification must not see sup/sub content.
func (t *Tree) DirectText(id NodeID) string {
	var sb strings.Builder
	t.Walk(id, func(n NodeID) bool {
		nd := &t.nodes[n]
		if n != id && nd.Kind == KindElement && (nd.Tag == "sup" || nd.Tag == "sub") {
			return false
		}
		if nd.Kind == KindText {
			sb.WriteString(nd.Text)
		}
		return true
	})
	return sb.String()
}

// FirstChildElement returns the first element child of id, or Invalid.
func (t *Tree) FirstChildElement(id NodeID) NodeID {
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind == KindElement {
			return c
		}
	}
	return Invalid
}

// HasClass reports whether an element carries the given class token.
func (t *Tree) HasClass(id NodeID, class string) bool {
	for _, tok := range strings.Fields(t.nodes[id].Class) {
		if tok == class {
			return true
		}
	}
	return false
}

// AddClass appends a class token if not already present.
func (t *Tree) AddClass(id NodeID, class string) {
	if t.HasClass(id, class) {
		return
	}
	if t.nodes[id].Class == "" {
		t.nodes[id].Class = class
	} else {
		t.nodes[id].Class += " " + class
	}
}

// RemoveClass drops a class token.
func (t *Tree) RemoveClass(id NodeID, class string) {
	toks := strings.Fields(t.nodes[id].Class)
	out := toks[:0]
	for _, tok := range toks {
		if tok != class {
			out = append(out, tok)
		}
	}
	t.nodes[id].Class = strings.Join(out, " ")
}

// Ancestor returns the nearest ancestor of id (id included) matching pred,
// or Invalid.
func (t *Tree) Ancestor(id NodeID, pred func(NodeID) bool) NodeID {
	for n := id; n != Invalid; n = t.nodes[n].Parent {
		if pred(n) {
			return n
		}
	}
	return Invalid
}

// IDs collects every non-empty element id in the document, in document order.
func (t *Tree) IDs() map[string]bool {
	out := make(map[string]bool)
	t.Walk(t.Root, func(n NodeID) bool {
		if t.nodes[n].Kind == KindElement && t.nodes[n].ID != "" {
			out[t.nodes[n].ID] = true
		}
		return true
	})
	return out
}

func indexOf(ids []NodeID, id NodeID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
