// Package parser builds the initial canonical tree from either source shape:
// the reading-ordered fragment sequence of the PDF-extraction path, or the
// scraped portal HTML of the publishing portal.
package parser

import (
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/lawtext/canon/internal/doctree"
	"github.com/lawtext/canon/internal/fragment"
)

// Options tunes tree construction.
type Options struct {
	HeadingMinSize   float64 `yaml:"heading_min_size"`
	HeadingMinWeight int     `yaml:"heading_min_weight"`
	// MarginGapPt is the horizontal clearance between the marginal column
	// and the body column.
	MarginGapPt float64 `yaml:"margin_gap_pt"`
	// ContainerSelector locates the law body in scraped portal HTML.
	ContainerSelector string `yaml:"container_selector"`
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		HeadingMinSize:    10.5,
		HeadingMinWeight:  600,
		MarginGapPt:       4,
		ContainerSelector: "#lawTextContainer, .law-body, body",
	}
}

var (
	provisionMarkerRe = regexp.MustCompile(`^§\s*\d+(?i:bis|ter|quater|quinquies|sexies|septies|octies)?\.?$`)
	enumMarkerRe      = regexp.MustCompile(`^(?:[a-z]|\d{1,2})\.$`)
)

// BuildTree converts the reading-ordered line sequence into the initial
// block tree. Each visual line becomes one block; provision markers,
// enumeration markers, table references and marginal-column fragments are
// split into blocks of their own so later passes can address them directly.
func BuildTree(lines []fragment.Line, opt Options, log *slog.Logger) *doctree.Tree {
	t := doctree.New()
	bodyLeft := bodyColumnLeft(lines)

	// An open marginal note absorbs margin-column content from adjacent
	// lines until the vertical run breaks.
	openNote := doctree.Invalid

	for _, line := range lines {
		var margin, body []fragment.Fragment
		for _, f := range line.Frags {
			if bodyLeft > 0 && f.Box.Right <= bodyLeft-opt.MarginGapPt {
				margin = append(margin, f)
			} else {
				body = append(body, f)
			}
		}

		if len(margin) > 0 {
			openNote = appendMarginalia(t, openNote, margin, log)
		} else if openNote != doctree.Invalid && len(body) > 0 &&
			blockTop(body) > t.Node(openNote).Geo.Bottom+marginNoteGap(t, openNote) {
			openNote = doctree.Invalid
		}

		if len(body) == 0 {
			continue
		}

		// Table references stand alone.
		rest := body[:0:0]
		for _, f := range body {
			if f.Text == "" && len(f.TablePaths) > 0 {
				blk := t.NewElement("div")
				t.Node(blk).Class = "table-ref"
				t.Append(blk, t.NewText(f.TablePaths[0]))
				setGeo(t, blk, []fragment.Fragment{f})
				t.Append(t.Root, blk)
				continue
			}
			rest = append(rest, f)
		}
		body = rest
		if len(body) == 0 {
			continue
		}

		// A provision marker opens the line as its own block.
		if provisionMarkerRe.MatchString(strings.TrimSpace(body[0].Text)) {
			blk := newBlock(t, "p", body[:1])
			t.Append(t.Root, blk)
			body = body[1:]
			if len(body) == 0 {
				continue
			}
		}

		// So does an enumeration marker followed by content.
		if len(body) > 1 && enumMarkerRe.MatchString(strings.TrimSpace(body[0].Text)) {
			blk := newBlock(t, "p", body[:1])
			t.Append(t.Root, blk)
			body = body[1:]
		}

		tag := "p"
		if isHeadingLine(body, opt) {
			tag = "h2"
		}
		t.Append(t.Root, newBlock(t, tag, body))
	}
	return t
}

// newBlock builds one block from a run of same-line fragments. Superscript
// and subscript fragments become sup/sub children; everything else becomes
// text nodes carrying the fragment's geometry.
func newBlock(t *doctree.Tree, tag string, frags []fragment.Fragment) doctree.NodeID {
	blk := t.NewElement(tag)
	for i, f := range frags {
		text := f.Text
		if i > 0 && !strings.HasSuffix(t.TextContent(blk), " ") && !strings.HasPrefix(text, " ") {
			text = " " + text
		}
		switch {
		case f.Sup:
			sup := t.NewElement("sup")
			t.Node(sup).Geo = geoOf(f)
			t.Append(sup, t.NewText(strings.TrimSpace(f.Text)))
			t.Append(blk, sup)
		case f.Sub:
			sub := t.NewElement("sub")
			t.Node(sub).Geo = geoOf(f)
			t.Append(sub, t.NewText(strings.TrimSpace(f.Text)))
			t.Append(blk, sub)
		default:
			tn := t.NewText(text)
			t.Node(tn).Geo = geoOf(f)
			t.Append(blk, tn)
		}
	}
	setGeo(t, blk, frags)
	return blk
}

func appendMarginalia(t *doctree.Tree, open doctree.NodeID, margin []fragment.Fragment, log *slog.Logger) doctree.NodeID {
	text := joinTexts(margin)
	if open != doctree.Invalid &&
		blockTop(margin) <= t.Node(open).Geo.Bottom+marginNoteGap(t, open) &&
		margin[0].Page == t.Node(open).Geo.Page {
		// Continuation line of the open note.
		t.Append(open, t.NewText(" "+text))
		geo := t.Node(open).Geo
		for _, f := range margin {
			if f.Box.Bottom > geo.Bottom {
				geo.Bottom = f.Box.Bottom
			}
			if f.Box.Right > geo.Right {
				geo.Right = f.Box.Right
			}
		}
		t.Node(open).Geo = geo
		return open
	}

	note := t.NewElement("p")
	t.Node(note).Class = "marginalia"
	t.Append(note, t.NewText(text))
	setGeo(t, note, margin)
	t.Append(t.Root, note)
	log.Debug("marginal note", "page", margin[0].Page, "text", text)
	return note
}

// marginNoteGap is the largest vertical gap across which two margin lines
// still read as one note: one and a half line heights.
func marginNoteGap(t *doctree.Tree, note doctree.NodeID) float64 {
	geo := t.Node(note).Geo
	h := geo.Bottom - geo.Top
	if h <= 0 {
		return 0
	}
	return 1.5 * geo.FontSize
}

// bodyColumnLeft estimates the left edge of the main text column as the most
// common fragment left edge, rounded to the point. Wide fragments only, so
// marginal notes and stray marks do not vote.
func bodyColumnLeft(lines []fragment.Line) float64 {
	votes := make(map[int]int)
	for _, line := range lines {
		for _, f := range line.Frags {
			if f.Box.Right-f.Box.Left < 30 {
				continue
			}
			votes[int(math.Round(f.Box.Left))]++
		}
	}
	best, bestCount := 0, 0
	for left, n := range votes {
		if n > bestCount || (n == bestCount && left < best) {
			best, bestCount = left, n
		}
	}
	if bestCount < 3 {
		return 0
	}
	return float64(best)
}

func isHeadingLine(frags []fragment.Fragment, opt Options) bool {
	for _, f := range frags {
		if f.Weight < opt.HeadingMinWeight || f.Size < opt.HeadingMinSize {
			return false
		}
	}
	return len(frags) > 0
}

func geoOf(f fragment.Fragment) doctree.Geometry {
	return doctree.Geometry{
		Page:      f.Page,
		Left:      f.Box.Left,
		Right:     f.Box.Right,
		Top:       f.Box.Top,
		Bottom:    f.Box.Bottom,
		FontSize:  f.Size,
		Weight:    f.Weight,
		LinkTint:  f.LinkTint,
		NotSubNum: f.NotSubNum,
	}
}

func setGeo(t *doctree.Tree, blk doctree.NodeID, frags []fragment.Fragment) {
	geo := geoOf(frags[0])
	for _, f := range frags[1:] {
		if f.Box.Left < geo.Left {
			geo.Left = f.Box.Left
		}
		if f.Box.Right > geo.Right {
			geo.Right = f.Box.Right
		}
		if f.Box.Top < geo.Top {
			geo.Top = f.Box.Top
		}
		if f.Box.Bottom > geo.Bottom {
			geo.Bottom = f.Box.Bottom
		}
		// Body size: the largest non-superscript run decides.
		if !f.Sup && !f.Sub && f.Size > geo.FontSize {
			geo.FontSize = f.Size
		}
		if f.Weight > geo.Weight {
			geo.Weight = f.Weight
		}
		if f.LinkTint {
			geo.LinkTint = true
		}
		if f.NotSubNum {
			geo.NotSubNum = true
		}
	}
	if frags[0].Sup || frags[0].Sub {
		// A block that opens with a marker takes its body size from the
		// first regular run if there is one.
		for _, f := range frags {
			if !f.Sup && !f.Sub {
				geo.FontSize = f.Size
				break
			}
		}
	}
	t.Node(blk).Geo = geo
}

func blockTop(frags []fragment.Fragment) float64 {
	top := frags[0].Box.Top
	for _, f := range frags[1:] {
		if f.Box.Top < top {
			top = f.Box.Top
		}
	}
	return top
}

func joinTexts(frags []fragment.Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if s := strings.TrimSpace(f.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
