package structure

import (
	"log/slog"

	"github.com/lawtext/canon/internal/doctree"
)

// maxRepositionSteps bounds the note bubbling loop so a document without a
// provision above a note still terminates.
const maxRepositionSteps = 50

// AlignMarginalia assigns each marginal note to the body block it overlaps
// most, inserts it immediately before that block, then bubbles every note
// upward until it sits directly before its owning provision marker.
func AlignMarginalia(t *doctree.Tree, log *slog.Logger) {
	blocks := t.Blocks()

	var notes []doctree.NodeID
	for _, blk := range blocks {
		if t.HasClass(blk, "marginalia") {
			notes = append(notes, blk)
		}
	}
	if len(notes) == 0 {
		return
	}

	for _, note := range notes {
		best, bestOverlap := doctree.Invalid, 0.0
		ng := t.Node(note).Geo
		for _, cand := range blocks {
			if cand == note || t.HasClass(cand, "marginalia") {
				continue
			}
			cg := t.Node(cand).Geo
			if cg.Page != ng.Page || cg.Bottom <= cg.Top {
				continue
			}
			ov := overlap(ng.Top, ng.Bottom, cg.Top, cg.Bottom)
			if ov > bestOverlap {
				best, bestOverlap = cand, ov
			}
		}
		if best != doctree.Invalid {
			t.InsertBefore(best, note)
		} else {
			log.Warn("marginal note without overlapping body block",
				"page", ng.Page, "text", t.TextContent(note))
		}
	}

	// Repositioning pass: a note converges onto the start of its provision
	// even when overlap assignment under- or over-shoots by a block.
	for _, note := range notes {
		for i := 0; i < maxRepositionSteps; i++ {
			next := t.NextSibling(note)
			if next == doctree.Invalid || IsProvisionBlock(t, next) {
				break
			}
			if !t.SwapWithPrev(note) {
				break
			}
		}
	}
}

// overlap returns the vertical overlap of two top-left-origin spans.
func overlap(aTop, aBottom, bTop, bBottom float64) float64 {
	top := aTop
	if bTop > top {
		top = bTop
	}
	bottom := aBottom
	if bBottom < bottom {
		bottom = bBottom
	}
	if bottom <= top {
		return 0
	}
	return bottom - top
}
