package fragment

import (
	"fmt"
	"sort"
)

// Line is a cluster of fragments judged to occupy the same visual line.
// Fragments are kept in left-to-right order.
type Line struct {
	Page  int
	Mid   float64 // anchor vertical midpoint, top-left origin
	Frags []Fragment
}

// Reorder converts all boxes to a top-left origin and produces the document's
// reading order: pages ascending, line clusters by vertical midpoint
// ascending, fragments within a line by left edge ascending. The stream-order
// index is the final tiebreak, so the result is a total order regardless of
// input order.
func Reorder(frags []Fragment, heights []float64, marginRatio float64) ([]Line, error) {
	if marginRatio <= 0 {
		marginRatio = DefaultOptions().ClusterMarginRatio
	}

	byPage := make(map[int][]Fragment)
	var pages []int
	for _, f := range frags {
		if _, seen := byPage[f.Page]; !seen {
			pages = append(pages, f.Page)
		}
		byPage[f.Page] = append(byPage[f.Page], f)
	}
	sort.Ints(pages)

	var lines []Line
	for _, page := range pages {
		if page < 0 || page >= len(heights) {
			return nil, fmt.Errorf("%w: page %d", ErrMissingPageHeight, page)
		}
		h := heights[page]

		pf := byPage[page]
		converted := make([]Fragment, len(pf))
		for i, f := range pf {
			converted[i] = f
			converted[i].Box = ConvertOrigin(f.Box, h)
			if len(f.CharBoxes) > 0 {
				cb := make([]Box, len(f.CharBoxes))
				for j, c := range f.CharBoxes {
					cb[j] = ConvertOrigin(c, h)
				}
				converted[i].CharBoxes = cb
			}
		}

		// Sorting by midpoint first makes clustering independent of the
		// extractor's stream order.
		sort.SliceStable(converted, func(i, j int) bool {
			a, b := converted[i], converted[j]
			if a.Box.Mid() != b.Box.Mid() {
				return a.Box.Mid() < b.Box.Mid()
			}
			if a.Box.Left != b.Box.Left {
				return a.Box.Left < b.Box.Left
			}
			return a.Order < b.Order
		})

		margin := marginRatio * h
		var pageLines []Line
		for _, f := range converted {
			placed := false
			for i := range pageLines {
				if abs(f.Box.Mid()-pageLines[i].Mid) < margin {
					pageLines[i].Frags = append(pageLines[i].Frags, f)
					placed = true
					break
				}
			}
			if !placed {
				pageLines = append(pageLines, Line{Page: page, Mid: f.Box.Mid(), Frags: []Fragment{f}})
			}
		}

		for i := range pageLines {
			sort.SliceStable(pageLines[i].Frags, func(a, b int) bool {
				fa, fb := pageLines[i].Frags[a], pageLines[i].Frags[b]
				if fa.Box.Left != fb.Box.Left {
					return fa.Box.Left < fb.Box.Left
				}
				return fa.Order < fb.Order
			})
		}
		lines = append(lines, pageLines...)
	}
	return lines, nil
}

// Flatten concatenates ordered lines back into a single fragment sequence.
func Flatten(lines []Line) []Fragment {
	var out []Fragment
	for _, l := range lines {
		out = append(out, l.Frags...)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
