package fragment

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Options tunes the geometric and typographic heuristics. Defaults mirror
// the layout of the legislative gazette the pipeline was built for.
type Options struct {
	HeaderZoneMM       float64 `yaml:"header_zone_mm"`
	FooterZoneMM       float64 `yaml:"footer_zone_mm"`
	SemiboldWeight     int     `yaml:"semibold_weight"`
	ClusterMarginRatio float64 `yaml:"cluster_margin_ratio"`
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		HeaderZoneMM:       21,
		FooterZoneMM:       21,
		SemiboldWeight:     400,
		ClusterMarginRatio: 0.005,
	}
}

const mmToPoint = 72.0 / 25.4

var (
	// "§ 12. Every person ..." and Latin ordinal suffixes like "§ 12bis."
	provisionSplitRe = regexp.MustCompile(`^(§\s*\d+(?i:bis|ter|quater|quinquies|sexies|septies|octies)?\.)\s+(\S.*)$`)

	// Enumeration markers at fragment start: "a.", "iv.", "7.".
	enumLeadRe = regexp.MustCompile(`^(?:[a-z]|[ivxlcdm]+|\d{1,2})\.`)

	digitRe = regexp.MustCompile(`^\d+$`)
)

// Preprocess normalizes a raw fragment list: provision-marker splits, comma
// and section-sign joins, bold hyphenation repair, header/footer stripping
// and subprovision-candidate flagging. The input slice is not mutated.
func Preprocess(frags []Fragment, heights []float64, opt Options, log *slog.Logger) []Fragment {
	out := make([]Fragment, len(frags))
	copy(out, frags)

	out = mergeSectionSigns(out)
	out = splitProvisionMarkers(out)
	out = mergeCommaJoins(out)
	out = mergeBoldHyphens(out, opt.SemiboldWeight)
	out = dropHeaderFooter(out, heights, opt, log)
	flagNonSubprovision(out)

	for i := range out {
		out[i].Order = i
	}
	return out
}

// splitProvisionMarkers splits "§ 12. Every person" into a marker fragment
// and a remainder fragment, preserving bounding-box continuity via the
// character boxes when available.
func splitProvisionMarkers(frags []Fragment) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		m := provisionSplitRe.FindStringSubmatch(f.Text)
		if m == nil {
			out = append(out, f)
			continue
		}
		marker, rest := f, f
		marker.Text = m[1]
		rest.Text = m[2]

		total := utf8.RuneCountInString(f.Text)
		markerRunes := utf8.RuneCountInString(m[1])
		restRunes := utf8.RuneCountInString(m[2])
		if len(f.CharBoxes) == total {
			marker.Box = unionAll(f.CharBoxes[:markerRunes])
			marker.CharBoxes = f.CharBoxes[:markerRunes]
			rest.Box = unionAll(f.CharBoxes[total-restRunes:])
			rest.CharBoxes = f.CharBoxes[total-restRunes:]
		} else {
			at := f.Box.Left + (f.Box.Right-f.Box.Left)*float64(markerRunes)/float64(total)
			marker.Box.Right = at
			marker.CharBoxes = nil
			rest.Box.Left = at
			rest.CharBoxes = nil
		}
		out = append(out, marker, rest)
	}
	return out
}

// mergeSectionSigns joins a lone "§" fragment with the fragment after it.
func mergeSectionSigns(frags []Fragment) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for i := 0; i < len(frags); i++ {
		f := frags[i]
		if strings.TrimSpace(f.Text) == "§" && i+1 < len(frags) && frags[i+1].Page == f.Page {
			next := frags[i+1]
			merged := next
			merged.Text = "§ " + strings.TrimLeft(next.Text, " ")
			merged.Box = Union(f.Box, next.Box)
			merged.CharBoxes = nil
			if f.Weight > merged.Weight {
				merged.Weight = f.Weight
			}
			out = append(out, merged)
			i++
			continue
		}
		out = append(out, f)
	}
	return out
}

// mergeCommaJoins folds a lone comma fragment together with its neighbors,
// unless the following fragment starts like an enumeration marker. The guard
// keeps enumerated lists that happen to follow commas intact.
func mergeCommaJoins(frags []Fragment) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for i := 0; i < len(frags); i++ {
		f := frags[i]
		if strings.TrimSpace(f.Text) != "," || len(out) == 0 || i+1 >= len(frags) {
			out = append(out, f)
			continue
		}
		next := frags[i+1]
		if enumLeadRe.MatchString(strings.TrimSpace(next.Text)) {
			out = append(out, f)
			continue
		}
		prev := out[len(out)-1]
		prev.Text = strings.TrimRight(prev.Text, " ") + ", " + strings.TrimLeft(next.Text, " ")
		prev.Box = Union(Union(prev.Box, f.Box), next.Box)
		prev.CharBoxes = nil
		out[len(out)-1] = prev
		i++
	}
	return out
}

// mergeBoldHyphens reverses word-wrap hyphenation artifacts in emphasized
// runs: three consecutive fragments A, "-", B above the semibold threshold
// collapse into "A"+"B" with no separator.
func mergeBoldHyphens(frags []Fragment, semibold int) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for i := 0; i < len(frags); i++ {
		if i+2 < len(frags) &&
			frags[i].Weight > semibold && frags[i+1].Weight > semibold && frags[i+2].Weight > semibold &&
			strings.TrimSpace(frags[i+1].Text) == "-" {
			merged := frags[i]
			merged.Text = frags[i].Text + frags[i+2].Text
			merged.Box = Union(Union(frags[i].Box, frags[i+1].Box), frags[i+2].Box)
			merged.CharBoxes = nil
			out = append(out, merged)
			i += 2
			continue
		}
		out = append(out, frags[i])
	}
	return out
}

// dropHeaderFooter removes fragments that lie entirely inside the
// page-relative header or footer zone. Coordinates here are still the
// extractor's bottom-left origin.
func dropHeaderFooter(frags []Fragment, heights []float64, opt Options, log *slog.Logger) []Fragment {
	headerPt := opt.HeaderZoneMM * mmToPoint
	footerPt := opt.FooterZoneMM * mmToPoint

	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if f.Page < 0 || f.Page >= len(heights) {
			log.Warn("fragment on page without height metadata", "page", f.Page)
			out = append(out, f)
			continue
		}
		h := heights[f.Page]
		inHeader := f.Box.Bottom >= h-headerPt
		inFooter := f.Box.Top <= footerPt
		if inHeader || inFooter {
			continue
		}
		out = append(out, f)
	}
	return out
}

// flagNonSubprovision marks fragments the segmenter must never read as a
// subprovision numeral: subscripts, unit superscripts (m2 / m3) and the
// parts of a stacked fraction.
func flagNonSubprovision(frags []Fragment) {
	for i := range frags {
		f := &frags[i]
		trimmed := strings.TrimSpace(f.Text)
		if f.Sub {
			f.NotSubNum = true
		}
		if trimmed == "m²" || trimmed == "m³" {
			f.NotSubNum = true
		}
		if f.Sup && (trimmed == "2" || trimmed == "3") && i > 0 &&
			strings.HasSuffix(strings.TrimSpace(frags[i-1].Text), "m") {
			f.NotSubNum = true
		}
	}

	// Fraction shape: superscript numerator, "/", subscript denominator on
	// the same visual line.
	for i := 0; i+2 < len(frags); i++ {
		a, b, c := &frags[i], &frags[i+1], &frags[i+2]
		if a.Sup && c.Sub && a.Page == b.Page && b.Page == c.Page &&
			strings.TrimSpace(b.Text) == "/" &&
			digitRe.MatchString(strings.TrimSpace(a.Text)) &&
			digitRe.MatchString(strings.TrimSpace(c.Text)) {
			a.NotSubNum = true
			c.NotSubNum = true
		}
	}
}

func unionAll(boxes []Box) Box {
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = Union(out, b)
	}
	return out
}
