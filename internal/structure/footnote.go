package structure

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/lawtext/canon/internal/doctree"
)

// FootnoteOptions tunes footnote-region detection and marking.
type FootnoteOptions struct {
	// PlainMaxSize marks a region line with no superscript child.
	PlainMaxSize float64 `yaml:"plain_max_size"`
	// MarkedMaxSize is the stricter bound for lines that do carry a
	// superscript-only numeric child.
	MarkedMaxSize float64 `yaml:"marked_max_size"`
	// CitationMaxSize bounds the closing "OS n, n" citation line.
	CitationMaxSize float64 `yaml:"citation_max_size"`
}

// DefaultFootnoteOptions returns the tuned defaults.
func DefaultFootnoteOptions() FootnoteOptions {
	return FootnoteOptions{
		PlainMaxSize:    8.0,
		MarkedMaxSize:   7.5,
		CitationMaxSize: 8.0,
	}
}

// Entry is one merged footnote.
type Entry struct {
	Marker int
	Node   doctree.NodeID
}

var (
	annexRe    = regexp.MustCompile(`(?i)^(anhang|annex)`)
	citationRe = regexp.MustCompile(`^OS\s+\d+,\s*\d+`)
	zifferRe   = regexp.MustCompile(`^\d{1,2}\.$`)
	fnAnchorRe = regexp.MustCompile(`^#fn-?\d+$`)
	digitRunRe = regexp.MustCompile(`\d+`)
)

// ResolveFootnotes locates the footnote region, marks and merges footnote
// lines, demotes trailing over-matches, rewrites in-body references and
// relocates the merged block behind an <hr id="footnote-line"> boundary at
// the end of the document. Returns the surviving entries in document order.
func ResolveFootnotes(t *doctree.Tree, opt FootnoteOptions, log *slog.Logger) []Entry {
	if opt.PlainMaxSize <= 0 {
		opt = DefaultFootnoteOptions()
	}

	markRegion(t, opt, log)
	entries := mergeEntries(t)
	entries = demoteTrailing(t, entries, log)

	if len(entries) > 0 {
		rewriteReferences(t, log)
		relocate(t, entries)
	}
	rewritePortalAnchors(t)
	return entries
}

// markRegion finds the footnote region candidate and tags qualifying lines
// with class "footnote". Only geometry-bearing blocks participate; the
// markup path arrives with footnote lines pre-classified.
func markRegion(t *doctree.Tree, opt FootnoteOptions, log *slog.Logger) {
	blocks := t.Blocks()

	headings := make([]int, 0, 8)
	annexIdx := -1
	for i, blk := range blocks {
		if !isHeading(t, blk) {
			continue
		}
		headings = append(headings, i)
		if annexIdx < 0 && annexRe.MatchString(strings.TrimSpace(t.TextContent(blk))) {
			annexIdx = i
		}
	}
	if len(headings) == 0 {
		return
	}

	start, end := 0, len(blocks)
	if annexIdx >= 0 {
		// Between the last heading preceding the annex heading and the
		// closing citation line.
		start = 0
		for _, h := range headings {
			if h < annexIdx {
				start = h + 1
			}
		}
		end = annexIdx
		for i := start; i < annexIdx; i++ {
			geo := t.Node(blocks[i]).Geo
			if geo.FontSize > 0 && geo.FontSize < opt.CitationMaxSize &&
				citationRe.MatchString(strings.TrimSpace(t.TextContent(blocks[i]))) {
				end = i
				break
			}
		}
	} else {
		start = headings[len(headings)-1] + 1
	}

	for i := start; i < end; i++ {
		blk := blocks[i]
		nd := t.Node(blk)
		if nd.Kind != doctree.KindElement || isHeading(t, blk) {
			continue
		}
		if t.HasClass(blk, "provision") || t.HasClass(blk, "subprovision") ||
			t.HasClass(blk, "marginalia") || strings.HasPrefix(nd.ID, "provision-") {
			continue
		}
		if nd.Geo.FontSize <= 0 {
			continue
		}
		sup := leadingSup(t, blk)
		if sup != doctree.Invalid && t.HasClass(sup, "subprovision") {
			continue
		}
		supNumeric := sup != doctree.Invalid && numericRe.MatchString(strings.TrimSpace(t.TextContent(sup)))
		switch {
		case sup == doctree.Invalid && nd.Geo.FontSize < opt.PlainMaxSize:
			t.AddClass(blk, "footnote")
		case supNumeric && nd.Geo.FontSize < opt.MarkedMaxSize:
			t.AddClass(blk, "footnote")
		}
	}
}

// mergeEntries scans footnote lines top to bottom: a leading superscript
// numeral opens a new entry, continuation lines are folded into the open one.
func mergeEntries(t *doctree.Tree) []Entry {
	var entries []Entry
	open := doctree.Invalid

	for _, blk := range t.Blocks() {
		if !t.HasClass(blk, "footnote") {
			continue
		}
		if marker, ok := leadingMarker(t, blk); ok {
			entries = append(entries, Entry{Marker: marker, Node: blk})
			open = blk
			continue
		}
		if open == doctree.Invalid {
			// Stray line before the first marker: not mergeable.
			continue
		}
		t.Append(open, t.NewText(" "))
		for _, c := range snapshot(t, blk) {
			t.Append(open, c)
		}
		t.Remove(blk)
	}
	return entries
}

// demoteTrailing guards against the marking heuristic over-firing after the
// genuine footnote block ends: scanning bottom-up, the true first entry is
// the one carrying marker 1; only the strictly increasing run starting there
// survives, everything else reverts to ordinary text. Preserved as observed
// behavior, not improved (non-sequential markers from upstream gaps demote).
func demoteTrailing(t *doctree.Tree, entries []Entry, log *slog.Logger) []Entry {
	first := -1
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Marker == 1 {
			first = i
			break
		}
	}
	if first < 0 {
		return entries
	}

	kept := entries[first : first+1 : first+1]
	last := entries[first].Marker
	for _, e := range entries[first+1:] {
		if e.Marker <= last {
			break
		}
		kept = append(kept, e)
		last = e.Marker
	}

	if len(kept) != len(entries) {
		seen := make(map[doctree.NodeID]bool, len(kept))
		for _, e := range kept {
			seen[e.Node] = true
		}
		for _, e := range entries {
			if !seen[e.Node] {
				t.RemoveClass(e.Node, "footnote")
				log.Warn("demoted footnote candidate", "marker", e.Marker)
			}
		}
	}
	return kept
}

// rewriteReferences turns link-tinted in-body digits into anchored
// superscript references against the shared footnote-line boundary. Entries
// are listed sequentially at that anchor, so all references share one target.
func rewriteReferences(t *doctree.Tree, log *slog.Logger) {
	for _, blk := range t.Blocks() {
		if t.HasClass(blk, "footnote") || t.HasClass(blk, "marginalia") || isHeading(t, blk) {
			continue
		}
		t.Walk(blk, func(n doctree.NodeID) bool {
			nd := t.Node(n)
			switch {
			case nd.Kind == doctree.KindElement && nd.Tag == "sup" && nd.Geo.LinkTint:
				text := strings.TrimSpace(t.TextContent(n))
				if numericRe.MatchString(text) && t.FirstChildElement(n) == doctree.Invalid {
					a := t.NewElement("a")
					t.Node(a).Href = "#footnote-line"
					for _, c := range snapshot(t, n) {
						t.Append(a, c)
					}
					t.Append(n, a)
				}
				return false
			case nd.Kind == doctree.KindText && nd.Geo.LinkTint:
				trimmed := strings.TrimSpace(nd.Text)
				if provisionRe.MatchString(trimmed) || zifferRe.MatchString(trimmed) {
					return true
				}
				if digitRunRe.MatchString(nd.Text) {
					explodeReference(t, n)
				}
			}
			return true
		})
	}
}

// explodeReference replaces a tinted text node with interleaved plain text
// and sup-wrapped footnote anchors, one per digit group.
func explodeReference(t *doctree.Tree, textNode doctree.NodeID) {
	text := t.Node(textNode).Text
	locs := digitRunRe.FindAllStringIndex(text, -1)

	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			t.InsertBefore(textNode, t.NewText(text[pos:loc[0]]))
		}
		sup := t.NewElement("sup")
		a := t.NewElement("a")
		t.Node(a).Href = "#footnote-line"
		t.Append(a, t.NewText(text[loc[0]:loc[1]]))
		t.Append(sup, a)
		t.InsertBefore(textNode, sup)
		pos = loc[1]
	}
	if pos < len(text) {
		t.InsertBefore(textNode, t.NewText(text[pos:]))
	}
	t.Remove(textNode)
}

// relocate moves the merged footnote block to the end of the document behind
// the boundary rule.
func relocate(t *doctree.Tree, entries []Entry) {
	hr := t.NewElement("hr")
	t.Node(hr).ID = "footnote-line"
	t.Append(t.Root, hr)
	for _, e := range entries {
		t.Append(t.Root, e.Node)
	}
}

// rewritePortalAnchors redirects portal-style footnote anchors (#fn-<n>) to
// the shared boundary anchor.
func rewritePortalAnchors(t *doctree.Tree) {
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind == doctree.KindElement && nd.Tag == "a" && fnAnchorRe.MatchString(nd.Href) {
			nd.Href = "#footnote-line"
		}
		return true
	})
}

// leadingMarker returns the numeral of a block's opening superscript, if any.
func leadingMarker(t *doctree.Tree, blk doctree.NodeID) (int, bool) {
	sup := leadingSup(t, blk)
	if sup == doctree.Invalid {
		return 0, false
	}
	text := strings.TrimSpace(t.TextContent(sup))
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}

// leadingSup returns a block's first child when it is a sup element.
func leadingSup(t *doctree.Tree, blk doctree.NodeID) doctree.NodeID {
	for _, c := range t.Node(blk).Children {
		nd := t.Node(c)
		if nd.Kind == doctree.KindText && strings.TrimSpace(nd.Text) == "" {
			continue
		}
		if nd.Kind == doctree.KindElement && nd.Tag == "sup" {
			return c
		}
		return doctree.Invalid
	}
	return doctree.Invalid
}

func isHeading(t *doctree.Tree, blk doctree.NodeID) bool {
	nd := t.Node(blk)
	return nd.Kind == doctree.KindElement && len(nd.Tag) == 2 &&
		nd.Tag[0] == 'h' && nd.Tag[1] >= '1' && nd.Tag[1] <= '6'
}

func snapshot(t *doctree.Tree, blk doctree.NodeID) []doctree.NodeID {
	kids := t.Node(blk).Children
	out := make([]doctree.NodeID, len(kids))
	copy(out, kids)
	return out
}
