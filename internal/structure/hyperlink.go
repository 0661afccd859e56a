package structure

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lawtext/canon/internal/doctree"
	"github.com/lawtext/canon/internal/fragment"
)

// LinkOptions tunes hyperlink synthesis.
type LinkOptions struct {
	// PaddingPt expands an annotation rectangle before text extraction, so
	// glyphs straddling the rectangle edge are still captured.
	PaddingPt float64 `yaml:"padding_pt"`
}

// DefaultLinkOptions returns the tuned defaults.
func DefaultLinkOptions() LinkOptions {
	return LinkOptions{PaddingPt: 2.0}
}

// Record is one hyperlink to synthesize: the anchor text to find in the
// document and the target it should point at.
type Record struct {
	Anchor string
	Target string
	Page   int
}

// SynthesizeLinks runs the whole stage: records are gathered from link
// annotations and from anchors already present in the document, matching
// in-text mentions are rewritten, every provision and subprovision gets a
// self-referencing anchor, nested links are flattened and dangling internal
// targets dropped.
func SynthesizeLinks(t *doctree.Tree, lines []fragment.Line, links []fragment.LinkAnnotation, heights []float64, opt LinkOptions, log *slog.Logger) []Record {
	if opt.PaddingPt <= 0 {
		opt = DefaultLinkOptions()
	}
	records := ExtractAnnotations(lines, links, heights, opt, log)
	records = append(records, ExtractAnchors(t)...)
	for _, rec := range records {
		rewriteRecord(t, rec)
	}
	SelfAnchors(t)
	FlattenNestedLinks(t)
	DropDanglingInternal(t, log)
	return records
}

// ExtractAnnotations recovers anchor text for every link annotation by
// collecting the fragment text covered by the padded annotation rectangle.
// Anchors without a digit are extraction noise and dropped.
func ExtractAnnotations(lines []fragment.Line, links []fragment.LinkAnnotation, heights []float64, opt LinkOptions, log *slog.Logger) []Record {
	var out []Record
	seen := make(map[string]bool)

	for _, ann := range links {
		if ann.URI == "" {
			continue
		}
		if ann.Page < 0 || ann.Page >= len(heights) {
			log.Warn("link annotation on page without height metadata", "page", ann.Page)
			continue
		}
		rect := fragment.ConvertOrigin(ann.Rect, heights[ann.Page])
		rect.Left -= opt.PaddingPt
		rect.Right += opt.PaddingPt
		rect.Top -= opt.PaddingPt
		rect.Bottom += opt.PaddingPt

		anchor := coveredText(lines, ann.Page, rect)
		anchor = strings.TrimRight(strings.TrimSpace(anchor), ".);")
		if anchor == "" || !strings.ContainsAny(anchor, "0123456789") {
			continue
		}
		key := anchor + "\x00" + ann.URI
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Record{Anchor: anchor, Target: ann.URI, Page: ann.Page})
	}
	return out
}

// ExtractAnchors derives records from anchors already present in the
// document, so plain-text repetitions of an anchored citation end up linked
// to the same target. Footnote references and targetless anchors carry no
// citation and are skipped; the digit noise filter matches the annotation
// path.
func ExtractAnchors(t *doctree.Tree) []Record {
	var out []Record
	seen := make(map[string]bool)
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind != doctree.KindElement || nd.Tag != "a" {
			return true
		}
		if nd.Href == "" || nd.Href == "#footnote-line" || fnAnchorRe.MatchString(nd.Href) {
			return true
		}
		anchor := strings.TrimRight(strings.TrimSpace(t.TextContent(n)), ".);")
		if anchor == "" || !strings.ContainsAny(anchor, "0123456789") {
			return true
		}
		key := anchor + "\x00" + nd.Href
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, Record{Anchor: anchor, Target: nd.Href})
		return true
	})
	return out
}

// coveredText gathers, in reading order, the text inside rect. Character
// boxes give glyph precision when the extractor supplied them; otherwise the
// whole fragment participates if its center is covered.
func coveredText(lines []fragment.Line, page int, rect fragment.Box) string {
	var parts []string
	for _, line := range lines {
		if line.Page != page {
			continue
		}
		for _, f := range line.Frags {
			runes := []rune(f.Text)
			if len(f.CharBoxes) == len(runes) && len(runes) > 0 {
				var sb strings.Builder
				for i, cb := range f.CharBoxes {
					if contains(rect, (cb.Left+cb.Right)/2, cb.Mid()) {
						sb.WriteRune(runes[i])
					}
				}
				if s := strings.TrimSpace(sb.String()); s != "" {
					parts = append(parts, s)
				}
				continue
			}
			if contains(rect, (f.Box.Left+f.Box.Right)/2, f.Box.Mid()) {
				if s := strings.TrimSpace(f.Text); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

func contains(rect fragment.Box, x, y float64) bool {
	return x >= rect.Left && x <= rect.Right && y >= rect.Top && y <= rect.Bottom
}

// rewriteRecord wraps whole-word occurrences of the record's anchor text.
// An occurrence already inside a link gets that link's target overwritten
// instead of a nested anchor.
func rewriteRecord(t *doctree.Tree, rec Record) {
	var textNodes []doctree.NodeID
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		if t.Node(n).Kind == doctree.KindText {
			textNodes = append(textNodes, n)
		}
		return true
	})

	for _, tn := range textNodes {
		if t.Removed(tn) {
			continue
		}
		text := t.Node(tn).Text
		locs := wholeWordIndexes(text, rec.Anchor)
		if len(locs) == 0 {
			continue
		}
		if enclosing := enclosingAnchor(t, tn); enclosing != doctree.Invalid {
			t.Node(enclosing).Href = rec.Target
			continue
		}
		pos := 0
		for _, at := range locs {
			if at > pos {
				t.InsertBefore(tn, t.NewText(text[pos:at]))
			}
			a := t.NewElement("a")
			t.Node(a).Href = rec.Target
			t.Append(a, t.NewText(text[at:at+len(rec.Anchor)]))
			t.InsertBefore(tn, a)
			pos = at + len(rec.Anchor)
		}
		if pos < len(text) {
			t.InsertBefore(tn, t.NewText(text[pos:]))
		}
		t.Remove(tn)
	}
}

// SelfAnchors makes every provision and subprovision identifier
// independently click-targetable. Content already inside an anchor, or a
// superscript that itself contains a link, keeps its boundary.
func SelfAnchors(t *doctree.Tree) {
	var targets []doctree.NodeID
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind == doctree.KindElement && strings.HasPrefix(nd.ID, "provision-") {
			targets = append(targets, n)
		}
		return true
	})

	for _, n := range targets {
		if enclosingAnchor(t, n) != doctree.Invalid {
			continue
		}
		wrapOutsideAnchors(t, n)
	}
}

// wrapOutsideAnchors wraps each run of anchor-free children of n in a link
// to n's own identifier. An existing anchor, or a superscript that carries
// one, keeps its boundary; the self link covers only the content outside it.
func wrapOutsideAnchors(t *doctree.Tree, n doctree.NodeID) {
	href := "#" + t.Node(n).ID

	var run []doctree.NodeID
	flush := func(before doctree.NodeID) {
		if runHasContent(t, run) {
			a := t.NewElement("a")
			t.Node(a).Href = href
			if before == doctree.Invalid {
				t.Append(n, a)
			} else {
				t.InsertBefore(before, a)
			}
			for _, c := range run {
				t.Append(a, c)
			}
		}
		run = run[:0]
	}

	for _, c := range snapshot(t, n) {
		nd := t.Node(c)
		if (nd.Kind == doctree.KindElement && nd.Tag == "a") || containsAnchor(t, c) {
			flush(c)
			continue
		}
		run = append(run, c)
	}
	flush(doctree.Invalid)
}

// runHasContent reports whether a child run carries anything worth linking:
// whitespace-only gaps between existing anchors stay unwrapped.
func runHasContent(t *doctree.Tree, run []doctree.NodeID) bool {
	for _, c := range run {
		if t.Node(c).Kind == doctree.KindElement {
			return true
		}
		if strings.TrimSpace(t.Node(c).Text) != "" {
			return true
		}
	}
	return false
}

// FlattenNestedLinks unwraps any link nested inside another link.
func FlattenNestedLinks(t *doctree.Tree) {
	var nested []doctree.NodeID
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind == doctree.KindElement && nd.Tag == "a" {
			if parent := nd.Parent; parent != doctree.Invalid && enclosingAnchor(t, parent) != doctree.Invalid {
				nested = append(nested, n)
			}
		}
		return true
	})
	for _, n := range nested {
		unwrap(t, n)
	}
}

// DropDanglingInternal unwraps internal links whose target identifier does
// not exist in the document. Unresolved targets are dropped, not fabricated.
func DropDanglingInternal(t *doctree.Tree, log *slog.Logger) {
	ids := t.IDs()
	var dangling []doctree.NodeID
	t.Walk(t.Root, func(n doctree.NodeID) bool {
		nd := t.Node(n)
		if nd.Kind == doctree.KindElement && nd.Tag == "a" && strings.HasPrefix(nd.Href, "#") {
			if !ids[strings.TrimPrefix(nd.Href, "#")] {
				dangling = append(dangling, n)
			}
		}
		return true
	})
	for _, n := range dangling {
		log.Warn("dropping dangling internal link", "target", t.Node(n).Href)
		unwrap(t, n)
	}
}

// unwrap replaces an element with its children.
func unwrap(t *doctree.Tree, n doctree.NodeID) {
	for _, c := range snapshot(t, n) {
		t.InsertBefore(n, c)
	}
	t.Remove(n)
}

// enclosingAnchor returns the nearest strict ancestor anchor of n.
func enclosingAnchor(t *doctree.Tree, n doctree.NodeID) doctree.NodeID {
	parent := t.Node(n).Parent
	if parent == doctree.Invalid {
		return doctree.Invalid
	}
	return t.Ancestor(parent, func(a doctree.NodeID) bool {
		nd := t.Node(a)
		return nd.Kind == doctree.KindElement && nd.Tag == "a"
	})
}

func containsAnchor(t *doctree.Tree, n doctree.NodeID) bool {
	found := false
	t.Walk(n, func(c doctree.NodeID) bool {
		nd := t.Node(c)
		if c != n && nd.Kind == doctree.KindElement && nd.Tag == "a" {
			found = true
		}
		return !found
	})
	return found
}

// wholeWordIndexes finds byte offsets of whole-word occurrences of needle.
func wholeWordIndexes(text, needle string) []int {
	if needle == "" {
		return nil
	}
	var out []int
	for from := 0; ; {
		at := strings.Index(text[from:], needle)
		if at < 0 {
			return out
		}
		at += from
		before, _ := utf8.DecodeLastRuneInString(text[:at])
		after, _ := utf8.DecodeRuneInString(text[at+len(needle):])
		if !wordRune(before) && !wordRune(after) {
			out = append(out, at)
		}
		from = at + len(needle)
	}
}

func wordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
