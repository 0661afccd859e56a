package structure

import (
	"testing"

	"github.com/lawtext/canon/internal/doctree"
	"github.com/lawtext/canon/internal/fragment"
)

// Annotation rectangles arrive in the extractor's bottom-left origin; the
// fragment lines here are already converted, so build the rect accordingly.
func annRect(left, top, right, bottom, pageHeight float64) fragment.Box {
	return fragment.Box{Left: left, Right: right, Top: pageHeight - top, Bottom: pageHeight - bottom}
}

func TestExtractAnnotations_RecoversCoveredText(t *testing.T) {
	lines := []fragment.Line{{Page: 0, Frags: []fragment.Fragment{
		{Text: "see", Page: 0, Box: fragment.Box{Left: 100, Right: 120, Top: 100, Bottom: 112}},
		{Text: "LV 131.1", Page: 0, Box: fragment.Box{Left: 124, Right: 170, Top: 100, Bottom: 112}},
	}}}
	links := []fragment.LinkAnnotation{{
		Page: 0,
		Rect: annRect(123, 99, 171, 113, 800),
		URI:  "https://laws.example/131.1",
	}}

	recs := ExtractAnnotations(lines, links, []float64{800}, DefaultLinkOptions(), testLogger())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Anchor != "LV 131.1" || recs[0].Target != "https://laws.example/131.1" {
		t.Errorf("record: %+v", recs[0])
	}
}

func TestExtractAnnotations_CharBoxPrecision(t *testing.T) {
	// Only the trailing "131.1" glyphs sit inside the rectangle.
	text := "see LV 131.1"
	var boxes []fragment.Box
	for i := range []rune(text) {
		l := 100 + float64(i)*6
		boxes = append(boxes, fragment.Box{Left: l, Right: l + 6, Top: 100, Bottom: 112})
	}
	lines := []fragment.Line{{Page: 0, Frags: []fragment.Fragment{
		{Text: text, Page: 0, Box: fragment.Box{Left: 100, Right: 172, Top: 100, Bottom: 112}, CharBoxes: boxes},
	}}}
	links := []fragment.LinkAnnotation{{
		Page: 0,
		Rect: annRect(141, 99, 173, 113, 800),
		URI:  "https://laws.example/131.1",
	}}

	recs := ExtractAnnotations(lines, links, []float64{800}, DefaultLinkOptions(), testLogger())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Anchor != "131.1" {
		t.Errorf("anchor: %q", recs[0].Anchor)
	}
}

func TestExtractAnnotations_DropsNoise(t *testing.T) {
	lines := []fragment.Line{{Page: 0, Frags: []fragment.Fragment{
		{Text: "ff).", Page: 0, Box: fragment.Box{Left: 100, Right: 120, Top: 100, Bottom: 112}},
		{Text: "LV 12.", Page: 0, Box: fragment.Box{Left: 200, Right: 240, Top: 100, Bottom: 112}},
		{Text: "LV 12.", Page: 0, Box: fragment.Box{Left: 300, Right: 340, Top: 100, Bottom: 112}},
	}}}
	links := []fragment.LinkAnnotation{
		// No digit in the covered text: extraction noise.
		{Page: 0, Rect: annRect(99, 99, 121, 113, 800), URI: "https://laws.example/x"},
		// Trailing punctuation is stripped.
		{Page: 0, Rect: annRect(199, 99, 241, 113, 800), URI: "https://laws.example/12"},
		// Same anchor and target again: duplicate.
		{Page: 0, Rect: annRect(299, 99, 341, 113, 800), URI: "https://laws.example/12"},
		// No target at all.
		{Page: 0, Rect: annRect(199, 99, 241, 113, 800), URI: ""},
	}

	recs := ExtractAnnotations(lines, links, []float64{800}, DefaultLinkOptions(), testLogger())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(recs), recs)
	}
	if recs[0].Anchor != "LV 12" {
		t.Errorf("anchor: %q", recs[0].Anchor)
	}
}

func TestExtractAnchors_HarvestsExistingCitations(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("p")
	cite := tr.NewElement("a")
	tr.Node(cite).Href = "https://laws.example/12"
	tr.Append(cite, tr.NewText("LV 12."))
	tr.Append(blk, cite)

	fn := tr.NewElement("a")
	tr.Node(fn).Href = "#footnote-line"
	tr.Append(fn, tr.NewText("3"))
	tr.Append(blk, fn)

	noDigit := tr.NewElement("a")
	tr.Node(noDigit).Href = "https://laws.example/about"
	tr.Append(noDigit, tr.NewText("see above"))
	tr.Append(blk, noDigit)

	dup := tr.NewElement("a")
	tr.Node(dup).Href = "https://laws.example/12"
	tr.Append(dup, tr.NewText("LV 12"))
	tr.Append(blk, dup)
	tr.Append(tr.Root, blk)

	recs := ExtractAnchors(tr)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(recs), recs)
	}
	if recs[0].Anchor != "LV 12" || recs[0].Target != "https://laws.example/12" {
		t.Errorf("record: %+v", recs[0])
	}
}

func TestSynthesizeLinks_LinksRepeatedCitationMentions(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("p")
	cite := tr.NewElement("a")
	tr.Node(cite).Href = "https://laws.example/12"
	tr.Append(cite, tr.NewText("LV 12"))
	tr.Append(blk, tr.NewText("Under "))
	tr.Append(blk, cite)
	tr.Append(tr.Root, blk)
	mention := textBlock(tr, "LV 12 applies here as well.")

	SynthesizeLinks(tr, nil, nil, nil, DefaultLinkOptions(), testLogger())

	var hrefs []string
	tr.Walk(mention, func(n doctree.NodeID) bool {
		if tr.Node(n).Tag == "a" {
			hrefs = append(hrefs, tr.Node(n).Href)
		}
		return true
	})
	if len(hrefs) != 1 || hrefs[0] != "https://laws.example/12" {
		t.Fatalf("plain mention not linked: %v", hrefs)
	}
	if got := tr.TextContent(mention); got != "LV 12 applies here as well." {
		t.Errorf("mention text changed: %q", got)
	}
}

func TestRewriteRecord_WholeWordOnly(t *testing.T) {
	tr := doctree.New()
	blk := textBlock(tr, "Compare LV 12 with XLV 123 and LV 12.")

	rewriteRecord(tr, Record{Anchor: "LV 12", Target: "https://laws.example/12"})

	var anchors []doctree.NodeID
	tr.Walk(blk, func(n doctree.NodeID) bool {
		if tr.Node(n).Tag == "a" {
			anchors = append(anchors, n)
		}
		return true
	})
	if len(anchors) != 2 {
		t.Fatalf("expected 2 anchors, got %d", len(anchors))
	}
	for _, a := range anchors {
		if tr.Node(a).Href != "https://laws.example/12" {
			t.Errorf("href: %q", tr.Node(a).Href)
		}
		if got := tr.TextContent(a); got != "LV 12" {
			t.Errorf("anchor text: %q", got)
		}
	}
	if got := tr.TextContent(blk); got != "Compare LV 12 with XLV 123 and LV 12." {
		t.Errorf("surrounding text changed: %q", got)
	}
}

func TestRewriteRecord_InsideAnchorOverwritesTarget(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("p")
	a := tr.NewElement("a")
	tr.Node(a).Href = "#provision-12"
	tr.Append(a, tr.NewText("LV 12"))
	tr.Append(blk, a)
	tr.Append(tr.Root, blk)

	rewriteRecord(tr, Record{Anchor: "LV 12", Target: "https://laws.example/12"})

	if got := tr.Node(a).Href; got != "https://laws.example/12" {
		t.Errorf("href: %q", got)
	}
	if tr.FirstChildElement(a) != doctree.Invalid {
		t.Error("no nested anchor may appear")
	}
}

func TestSelfAnchors_WrapsProvisionContent(t *testing.T) {
	tr := doctree.New()
	blk := textBlock(tr, "§ 12.")
	tr.Node(blk).ID = "provision-12"
	tr.AddClass(blk, "provision")

	SelfAnchors(tr)

	a := tr.FirstChildElement(blk)
	if a == doctree.Invalid || tr.Node(a).Tag != "a" {
		t.Fatal("provision content not wrapped")
	}
	if got := tr.Node(a).Href; got != "#provision-12" {
		t.Errorf("href: %q", got)
	}
	if got := tr.TextContent(blk); got != "§ 12." {
		t.Errorf("text changed: %q", got)
	}
}

func TestSelfAnchors_SkipsContentAlreadyLinked(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("h2")
	tr.Node(blk).ID = "provision-7"
	a := tr.NewElement("a")
	tr.Node(a).Href = "#provision-7"
	tr.Append(a, tr.NewText("§ 7."))
	tr.Append(blk, a)
	tr.Append(tr.Root, blk)

	SelfAnchors(tr)

	// The existing anchor must stay the only one.
	count := 0
	tr.Walk(blk, func(n doctree.NodeID) bool {
		if tr.Node(n).Tag == "a" {
			count++
		}
		return true
	})
	if count != 1 {
		t.Errorf("expected 1 anchor, got %d", count)
	}
}

func TestSelfAnchors_WrapsContentOutsideExistingAnchor(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("h2")
	tr.Node(blk).ID = "provision-7"
	tr.Append(blk, tr.NewText("§ 7."))
	sup := tr.NewElement("sup")
	fn := tr.NewElement("a")
	tr.Node(fn).Href = "#footnote-line"
	tr.Append(fn, tr.NewText("2"))
	tr.Append(sup, fn)
	tr.Append(blk, sup)
	tr.Append(blk, tr.NewText(" Permits"))
	tr.Append(tr.Root, blk)

	SelfAnchors(tr)

	var hrefs []string
	nested := false
	tr.Walk(blk, func(n doctree.NodeID) bool {
		if tr.Node(n).Tag != "a" {
			return true
		}
		hrefs = append(hrefs, tr.Node(n).Href)
		if enclosingAnchor(tr, n) != doctree.Invalid {
			nested = true
		}
		return true
	})
	if nested {
		t.Error("anchors must not nest")
	}
	want := []string{"#provision-7", "#footnote-line", "#provision-7"}
	if len(hrefs) != len(want) {
		t.Fatalf("hrefs: %v", hrefs)
	}
	for i := range want {
		if hrefs[i] != want[i] {
			t.Errorf("href %d: got %q, want %q", i, hrefs[i], want[i])
		}
	}
	if got := tr.TextContent(blk); got != "§ 7.2 Permits" {
		t.Errorf("text changed: %q", got)
	}
}

func TestFlattenNestedLinks(t *testing.T) {
	tr := doctree.New()
	blk := tr.NewElement("p")
	outer := tr.NewElement("a")
	tr.Node(outer).Href = "https://laws.example/12"
	inner := tr.NewElement("a")
	tr.Node(inner).Href = "https://laws.example/other"
	tr.Append(inner, tr.NewText("12"))
	tr.Append(outer, tr.NewText("LV "))
	tr.Append(outer, inner)
	tr.Append(blk, outer)
	tr.Append(tr.Root, blk)

	FlattenNestedLinks(tr)

	if !tr.Removed(inner) {
		t.Error("nested anchor must be unwrapped")
	}
	if got := tr.TextContent(outer); got != "LV 12" {
		t.Errorf("outer text: %q", got)
	}
}

func TestDropDanglingInternal(t *testing.T) {
	tr := doctree.New()
	target := textBlock(tr, "§ 12.")
	tr.Node(target).ID = "provision-12"

	blk := tr.NewElement("p")
	good := tr.NewElement("a")
	tr.Node(good).Href = "#provision-12"
	tr.Append(good, tr.NewText("good"))
	bad := tr.NewElement("a")
	tr.Node(bad).Href = "#provision-99"
	tr.Append(bad, tr.NewText("bad"))
	ext := tr.NewElement("a")
	tr.Node(ext).Href = "https://laws.example/99"
	tr.Append(ext, tr.NewText("external"))
	tr.Append(blk, good)
	tr.Append(blk, bad)
	tr.Append(blk, ext)
	tr.Append(tr.Root, blk)

	DropDanglingInternal(tr, testLogger())

	if tr.Removed(good) || tr.Removed(ext) {
		t.Error("resolvable and external links must survive")
	}
	if !tr.Removed(bad) {
		t.Error("dangling internal link must be unwrapped")
	}
	if got := tr.TextContent(blk); got != "goodbadexternal" {
		t.Errorf("text lost: %q", got)
	}
}

func TestWholeWordIndexes_RuneBoundaries(t *testing.T) {
	if got := wholeWordIndexes("über 12 müssen", "12"); len(got) != 1 || got[0] != 6 {
		t.Errorf("indexes: %v", got)
	}
	if got := wholeWordIndexes("x123x", "123"); len(got) != 0 {
		t.Errorf("embedded match accepted: %v", got)
	}
	if got := wholeWordIndexes("12, 12", "12"); len(got) != 2 {
		t.Errorf("indexes: %v", got)
	}
}
