// Package fragment models the positioned text fragments produced by the
// external PDF structural-extraction service, decodes the service's JSON
// stream, and normalizes fragments into a single reading-order sequence.
package fragment

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
)

// ErrMissingPageHeight is returned when a fragment references a page for
// which no height metadata was supplied. Vertical geometry is meaningless
// without it, so the whole document is rejected.
var ErrMissingPageHeight = errors.New("missing page height metadata")

// ErrNoFragments is returned when the stream decodes to zero usable
// fragments.
var ErrNoFragments = errors.New("no fragments in stream")

// Box is an axis-aligned bounding box. The extraction service emits
// bottom-left-origin coordinates (y grows up, Bottom < Top); ConvertOrigin
// flips a box to top-left origin (y grows down, Top < Bottom).
type Box struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

// Mid returns the vertical midpoint of the box. Valid in either origin.
func (b Box) Mid() float64 { return (b.Top + b.Bottom) / 2 }

// Union returns the smallest box covering both a and b, assuming both are in
// the same coordinate origin.
func Union(a, b Box) Box {
	out := a
	if b.Left < out.Left {
		out.Left = b.Left
	}
	if b.Right > out.Right {
		out.Right = b.Right
	}
	// Works for both origins: take the wider vertical span.
	if b.Top > out.Top {
		out.Top = b.Top
	}
	if b.Bottom < out.Bottom {
		out.Bottom = b.Bottom
	}
	return out
}

// ConvertOrigin flips b from the extractor's bottom-left origin to a top-left
// origin on a page of the given height. Must be applied exactly once per box.
func ConvertOrigin(b Box, pageHeight float64) Box {
	return Box{
		Left:   b.Left,
		Right:  b.Right,
		Top:    pageHeight - b.Top,
		Bottom: pageHeight - b.Bottom,
	}
}

// Fragment is one unit of extracted text. Fragments are immutable inputs;
// passes copy, split and merge them but never write through to the source
// stream.
type Fragment struct {
	Text       string
	Page       int
	Box        Box
	CharBoxes  []Box // per-character boxes, may be empty
	Weight     int   // font weight, 400 = regular
	Size       float64
	Sup        bool // superscript position flag
	Sub        bool // subscript position flag
	LinkTint   bool // link-colored text
	TablePaths []string
	Order      int // stream-order index

	// NotSubNum marks fragments the segmenter must never reclassify as a
	// subprovision numeral (unit superscripts, fraction parts, subscripts).
	NotSubNum bool
}

// LinkAnnotation is one link annotation lifted from the source PDF, supplied
// alongside the fragment stream.
type LinkAnnotation struct {
	Page int       `json:"page"`
	Rect Box       `json:"-"`
	URI  string    `json:"uri"`
	Raw  []float64 `json:"bounds"`
}

// Input is a fully decoded fragment stream for one document.
type Input struct {
	Fragments   []Fragment
	PageHeights []float64
	Links       []LinkAnnotation
}

// HeightFor returns the page height for a zero-based page index.
func (in *Input) HeightFor(page int) (float64, error) {
	if page < 0 || page >= len(in.PageHeights) {
		return 0, fmt.Errorf("%w: page %d", ErrMissingPageHeight, page)
	}
	return in.PageHeights[page], nil
}

// element mirrors the extraction service's JSON element shape.
type element struct {
	Text       string      `json:"Text"`
	Bounds     []float64   `json:"Bounds"`
	CharBounds [][]float64 `json:"CharBounds"`
	Page       int         `json:"Page"`
	Font       struct {
		Weight int `json:"weight"`
	} `json:"Font"`
	TextSize   float64 `json:"TextSize"`
	Attributes struct {
		TextPosition string `json:"TextPosition"`
		TextColor    string `json:"TextColor"`
	} `json:"attributes"`
	Kids      []element `json:"Kids"`
	FilePaths []string  `json:"filePaths"`
}

// stream is the envelope the surrounding pipeline hands over: the extractor's
// element list plus per-page heights and lifted link annotations.
type stream struct {
	Elements    []element        `json:"elements"`
	PageHeights []float64        `json:"pageHeights"`
	Links       []LinkAnnotation `json:"links"`
}

// DecodeStream parses a fragment-stream envelope. Elements missing text and
// table references, or missing a usable bounding box, are skipped with a
// warning; only an entirely unusable stream is an error.
func DecodeStream(data []byte, log *slog.Logger) (*Input, error) {
	var s stream
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode fragment stream: %w", err)
	}

	in := &Input{PageHeights: s.PageHeights}
	order := 0
	var flatten func(els []element)
	flatten = func(els []element) {
		for _, el := range els {
			if len(el.Kids) > 0 {
				flatten(el.Kids)
				continue
			}
			f, ok := toFragment(el, order)
			if !ok {
				log.Warn("skipping malformed fragment element",
					"page", el.Page, "text", el.Text)
				continue
			}
			in.Fragments = append(in.Fragments, f)
			order++
		}
	}
	flatten(s.Elements)

	for i := range s.Links {
		if len(s.Links[i].Raw) == 4 {
			s.Links[i].Rect = boxOf(s.Links[i].Raw)
		}
	}
	in.Links = s.Links

	if len(in.Fragments) == 0 {
		return nil, ErrNoFragments
	}
	return in, nil
}

func toFragment(el element, order int) (Fragment, bool) {
	if el.Text == "" && len(el.FilePaths) == 0 {
		return Fragment{}, false
	}
	if len(el.Bounds) != 4 {
		return Fragment{}, false
	}
	f := Fragment{
		Text:       el.Text,
		Page:       el.Page,
		Box:        boxOf(el.Bounds),
		Weight:     el.Font.Weight,
		Size:       el.TextSize,
		Sup:        el.Attributes.TextPosition == "Sup",
		Sub:        el.Attributes.TextPosition == "Sub",
		LinkTint:   el.Attributes.TextColor != "",
		TablePaths: el.FilePaths,
		Order:      order,
	}
	for _, cb := range el.CharBounds {
		if len(cb) == 4 {
			f.CharBoxes = append(f.CharBoxes, boxOf(cb))
		}
	}
	return f, true
}

func boxOf(v []float64) Box {
	return Box{Left: v[0], Bottom: v[1], Right: v[2], Top: v[3]}
}
