// Package structure implements the rule-based passes that turn the initial
// block tree into the canonical addressable document: provision and
// subprovision segmentation, enumeration tagging, footnote resolution,
// marginal-note alignment and hyperlink synthesis.
package structure

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lawtext/canon/internal/doctree"
)

// SegmentOptions tunes provision/subprovision recognition.
type SegmentOptions struct {
	// MinSubNumSize is the minimum font size for a superscript numeral to
	// count as a subprovision marker. Footnote markers are set smaller.
	MinSubNumSize float64 `yaml:"min_subnum_size"`
}

// DefaultSegmentOptions returns the tuned defaults.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{MinSubNumSize: 5.5}
}

// Provision is one recognized top-level unit.
type Provision struct {
	Seq     int // 1-based position among all provisions
	Numeral string
	Suffix  string // Latin ordinal suffix: bis, ter, ...
	Node    doctree.NodeID
}

// Key is the stable internal identifier, e.g. "seq-3-prov-12bis".
func (p Provision) Key() string {
	return fmt.Sprintf("seq-%d-prov-%s%s", p.Seq, p.Numeral, p.Suffix)
}

// HTMLID is the rendered element id, e.g. "provision-12bis".
func (p Provision) HTMLID() string {
	return "provision-" + p.Numeral + p.Suffix
}

var (
	provisionRe = regexp.MustCompile(`^§\s*(\d+)((?i:bis|ter|quater|quinquies|sexies|septies|octies))?\.?$`)
	subNumRe    = regexp.MustCompile(`^(?i)(\d+)(bis|ter|quater|quinquies|sexies|septies|octies)?$`)
	numericRe   = regexp.MustCompile(`^\d+$`)
)

// Segment runs a single forward pass over the block sequence, threading the
// last seen provision identifier as an explicit accumulator. Unrecognized
// content is left untouched: no match means plain text, never an error.
func Segment(t *doctree.Tree, opt SegmentOptions) []Provision {
	if opt.MinSubNumSize <= 0 {
		opt.MinSubNumSize = DefaultSegmentOptions().MinSubNumSize
	}

	var provisions []Provision
	lastID := ""

	for _, blk := range t.Blocks() {
		nd := t.Node(blk)

		// Upstream numbering (markup path) already encodes the provision.
		if strings.HasPrefix(nd.ID, "provision-") && !strings.Contains(nd.ID, "subprovision") {
			lastID = nd.ID
			provisions = append(provisions, provisionFromID(len(provisions)+1, nd.ID, blk))
			continue
		}

		text := strings.TrimSpace(t.DirectText(blk))
		if m := provisionRe.FindStringSubmatch(text); m != nil {
			p := Provision{
				Seq:     len(provisions) + 1,
				Numeral: m[1],
				Suffix:  strings.ToLower(m[2]),
				Node:    blk,
			}
			nd.ID = p.HTMLID()
			t.AddClass(blk, "provision")
			lastID = p.HTMLID()
			provisions = append(provisions, p)
			continue
		}

		// Standalone numeral block (markup path subprovisions).
		if m := subNumRe.FindStringSubmatch(text); m != nil && len(nd.Children) > 0 {
			if subprovisionEligible(nd.Geo, opt) && lastID != "" {
				nd.ID = lastID + "-subprovision-" + m[1] + strings.ToLower(m[2])
				t.AddClass(blk, "subprovision")
			}
			continue
		}

		// Inline superscript numeral opening a body block.
		sup := t.FirstChildElement(blk)
		if sup != doctree.Invalid && t.Node(sup).Tag == "sup" && isFirstChild(t, blk, sup) {
			supText := strings.TrimSpace(t.TextContent(sup))
			m := subNumRe.FindStringSubmatch(supText)
			if m == nil {
				continue
			}
			geo := t.Node(sup).Geo
			if !subprovisionEligible(geo, opt) || lastID == "" {
				continue
			}
			t.Node(sup).ID = lastID + "-subprovision-" + m[1] + strings.ToLower(m[2])
			t.AddClass(sup, "subprovision")
		}
	}
	return provisions
}

// subprovisionEligible applies the flag and readability guards. Markup-path
// nodes carry no font size; the size guard only fires when geometry exists.
func subprovisionEligible(geo doctree.Geometry, opt SegmentOptions) bool {
	if geo.NotSubNum {
		return false
	}
	if geo.FontSize > 0 && geo.FontSize < opt.MinSubNumSize {
		return false
	}
	return true
}

func provisionFromID(seq int, id string, node doctree.NodeID) Provision {
	body := strings.TrimPrefix(id, "provision-")
	numeral := body
	suffix := ""
	for i, r := range body {
		if r < '0' || r > '9' {
			numeral, suffix = body[:i], body[i:]
			break
		}
	}
	return Provision{Seq: seq, Numeral: numeral, Suffix: suffix, Node: node}
}

func isFirstChild(t *doctree.Tree, parent, child doctree.NodeID) bool {
	kids := t.Node(parent).Children
	return len(kids) > 0 && kids[0] == child
}

// IsProvisionBlock reports whether a node is a provision marker block.
func IsProvisionBlock(t *doctree.Tree, id doctree.NodeID) bool {
	nd := t.Node(id)
	if nd.Kind != doctree.KindElement {
		return false
	}
	if t.HasClass(id, "provision") {
		return true
	}
	return strings.HasPrefix(nd.ID, "provision-") && !strings.Contains(nd.ID, "subprovision")
}
