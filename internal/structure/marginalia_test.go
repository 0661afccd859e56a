package structure

import (
	"testing"

	"github.com/lawtext/canon/internal/doctree"
)

func geoBlock(t *doctree.Tree, text string, top, bottom float64) doctree.NodeID {
	blk := textBlock(t, text)
	t.Node(blk).Geo = doctree.Geometry{Left: 100, Right: 280, Top: top, Bottom: bottom, FontSize: 9.5}
	return blk
}

func provBlock(t *doctree.Tree, numeral string, top, bottom float64) doctree.NodeID {
	blk := geoBlock(t, "§ "+numeral+".", top, bottom)
	t.Node(blk).ID = "provision-" + numeral
	t.AddClass(blk, "provision")
	return blk
}

func noteBlock(t *doctree.Tree, text string, top, bottom float64) doctree.NodeID {
	blk := textBlock(t, text)
	t.AddClass(blk, "marginalia")
	t.Node(blk).Geo = doctree.Geometry{Left: 40, Right: 90, Top: top, Bottom: bottom, FontSize: 8}
	return blk
}

func TestAlignMarginalia_NoteLandsBeforeItsProvision(t *testing.T) {
	tr := doctree.New()
	provBlock(tr, "1", 100, 112)
	geoBlock(tr, "first provision body", 114, 126)
	p2 := provBlock(tr, "2", 140, 152)
	geoBlock(tr, "second provision body", 154, 166)
	note := noteBlock(tr, "Scope", 154, 164)

	AlignMarginalia(tr, testLogger())

	blocks := tr.Blocks()
	idx := -1
	for i, b := range blocks {
		if b == note {
			idx = i
		}
	}
	if idx < 0 || idx+1 >= len(blocks) || blocks[idx+1] != p2 {
		t.Fatalf("note must sit directly before its provision marker, position %d", idx)
	}
}

func TestAlignMarginalia_PicksLargestOverlap(t *testing.T) {
	tr := doctree.New()
	provBlock(tr, "1", 100, 112)
	geoBlock(tr, "barely touched line", 114, 126)
	p2 := provBlock(tr, "2", 130, 142)
	geoBlock(tr, "mostly covered line", 144, 156)
	// 1pt overlap with the first body line, 10pt with the second.
	note := noteBlock(tr, "Liability", 125, 154)

	AlignMarginalia(tr, testLogger())

	blocks := tr.Blocks()
	for i, b := range blocks {
		if b == note {
			if blocks[i+1] != p2 {
				t.Fatalf("note assigned to the wrong region")
			}
			return
		}
	}
	t.Fatal("note missing from document")
}

func TestAlignMarginalia_NoOverlapStaysPut(t *testing.T) {
	tr := doctree.New()
	provBlock(tr, "1", 100, 112)
	geoBlock(tr, "body on page zero", 114, 126)
	note := noteBlock(tr, "Orphan", 500, 510)
	tr.Node(note).Geo = doctree.Geometry{Page: 3, Left: 40, Right: 90, Top: 500, Bottom: 510, FontSize: 8}

	AlignMarginalia(tr, testLogger())

	blocks := tr.Blocks()
	if blocks[len(blocks)-1] != note {
		t.Error("unassignable note must keep its position")
	}
}

func TestAlignMarginalia_NoNotesNoChange(t *testing.T) {
	tr := doctree.New()
	provBlock(tr, "1", 100, 112)
	body := geoBlock(tr, "body", 114, 126)

	AlignMarginalia(tr, testLogger())

	blocks := tr.Blocks()
	if len(blocks) != 2 || blocks[1] != body {
		t.Error("document without notes must be untouched")
	}
}
