package fragment

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mid-page box, clear of header and footer zones
func bodyBox(left, right float64) Box {
	return Box{Left: left, Bottom: 400, Right: right, Top: 412}
}

func TestPreprocess_SplitsProvisionMarker(t *testing.T) {
	frags := []Fragment{{
		Text:   "§ 12. Every person",
		Page:   0,
		Box:    bodyBox(100, 280),
		Weight: 700,
		Size:   9.5,
	}}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 2 {
		t.Fatalf("expected 2 fragments after split, got %d", len(out))
	}
	if out[0].Text != "§ 12." {
		t.Errorf("marker fragment: got %q", out[0].Text)
	}
	if out[1].Text != "Every person" {
		t.Errorf("remainder fragment: got %q", out[1].Text)
	}
	if out[0].Box.Right <= out[0].Box.Left || out[0].Box.Right > out[1].Box.Left+0.01 {
		t.Errorf("bounding boxes not continuous: marker %+v remainder %+v", out[0].Box, out[1].Box)
	}
	if out[0].Weight != 700 || out[1].Weight != 700 {
		t.Errorf("font attributes not preserved")
	}
}

func TestPreprocess_SplitsLatinOrdinalSuffix(t *testing.T) {
	frags := []Fragment{{
		Text: "§ 7bis. Transitional rule",
		Page: 0,
		Box:  bodyBox(100, 280),
		Size: 9.5,
	}}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 2 || out[0].Text != "§ 7bis." {
		t.Fatalf("expected suffix marker split, got %v", texts(out))
	}
}

func TestPreprocess_MergesLoneComma(t *testing.T) {
	frags := []Fragment{
		{Text: "cantons", Page: 0, Box: bodyBox(100, 140), Size: 9.5},
		{Text: ",", Page: 0, Box: bodyBox(141, 143), Size: 9.5},
		{Text: "communes", Page: 0, Box: bodyBox(145, 200), Size: 9.5},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 1 {
		t.Fatalf("expected 1 merged fragment, got %d: %v", len(out), texts(out))
	}
	if out[0].Text != "cantons, communes" {
		t.Errorf("merged text: got %q", out[0].Text)
	}
}

func TestPreprocess_CommaBeforeEnumeratorIsKept(t *testing.T) {
	frags := []Fragment{
		{Text: "cantons", Page: 0, Box: bodyBox(100, 140), Size: 9.5},
		{Text: ",", Page: 0, Box: bodyBox(141, 143), Size: 9.5},
		{Text: "b. second item", Page: 0, Box: bodyBox(100, 200), Size: 9.5},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 3 {
		t.Fatalf("enumerator guard failed, got %d fragments: %v", len(out), texts(out))
	}
}

func TestPreprocess_MergesLoneSectionSign(t *testing.T) {
	frags := []Fragment{
		{Text: "§", Page: 0, Box: bodyBox(100, 106), Size: 9.5, Weight: 700},
		{Text: "12. Every person", Page: 0, Box: bodyBox(108, 250), Size: 9.5, Weight: 700},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	// The section sign merges with its successor, then the provision split
	// separates marker and remainder again.
	if len(out) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %v", len(out), texts(out))
	}
	if out[0].Text != "§ 12." || out[1].Text != "Every person" {
		t.Errorf("got %v", texts(out))
	}
}

func TestPreprocess_BoldHyphenJoin(t *testing.T) {
	frags := []Fragment{
		{Text: "Bundes", Page: 0, Box: bodyBox(100, 140), Size: 9.5, Weight: 700},
		{Text: "-", Page: 0, Box: bodyBox(141, 144), Size: 9.5, Weight: 700},
		{Text: "verfassung", Page: 0, Box: bodyBox(100, 160), Size: 9.5, Weight: 700},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 1 || out[0].Text != "Bundesverfassung" {
		t.Fatalf("expected hyphen join, got %v", texts(out))
	}
}

func TestPreprocess_RegularWeightHyphenIsKept(t *testing.T) {
	frags := []Fragment{
		{Text: "Bundes", Page: 0, Box: bodyBox(100, 140), Size: 9.5, Weight: 400},
		{Text: "-", Page: 0, Box: bodyBox(141, 144), Size: 9.5, Weight: 400},
		{Text: "verfassung", Page: 0, Box: bodyBox(100, 160), Size: 9.5, Weight: 400},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 3 {
		t.Fatalf("expected no join at regular weight, got %v", texts(out))
	}
}

func TestPreprocess_DropsHeaderAndFooterFragments(t *testing.T) {
	// 21mm is about 59.5pt; page height 800.
	frags := []Fragment{
		{Text: "Running header", Page: 0, Box: Box{Left: 100, Bottom: 770, Right: 200, Top: 780}, Size: 8},
		{Text: "Body line", Page: 0, Box: bodyBox(100, 200), Size: 9.5},
		{Text: "3", Page: 0, Box: Box{Left: 150, Bottom: 20, Right: 156, Top: 30}, Size: 8},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 1 || out[0].Text != "Body line" {
		t.Fatalf("expected only the body line, got %v", texts(out))
	}
}

func TestPreprocess_FlagsUnitSuperscript(t *testing.T) {
	frags := []Fragment{
		{Text: "30 m", Page: 0, Box: bodyBox(100, 130), Size: 9.5},
		{Text: "2", Page: 0, Box: bodyBox(131, 135), Size: 6, Sup: true},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 2 {
		t.Fatalf("got %v", texts(out))
	}
	if !out[1].NotSubNum {
		t.Error("unit superscript not flagged")
	}
}

func TestPreprocess_FlagsFractionParts(t *testing.T) {
	frags := []Fragment{
		{Text: "1", Page: 0, Box: bodyBox(100, 104), Size: 6, Sup: true},
		{Text: "/", Page: 0, Box: bodyBox(104, 107), Size: 9.5},
		{Text: "2", Page: 0, Box: bodyBox(107, 111), Size: 6, Sub: true},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	if len(out) != 3 {
		t.Fatalf("got %v", texts(out))
	}
	if !out[0].NotSubNum {
		t.Error("fraction numerator not flagged")
	}
	if !out[2].NotSubNum {
		t.Error("fraction denominator not flagged")
	}
}

func TestPreprocess_RenumbersOrder(t *testing.T) {
	frags := []Fragment{
		{Text: "§ 3. Text here", Page: 0, Box: bodyBox(100, 280), Size: 9.5, Order: 7},
		{Text: "more", Page: 0, Box: bodyBox(100, 140), Size: 9.5, Order: 9},
	}

	out := Preprocess(frags, []float64{800}, DefaultOptions(), testLogger())
	for i, f := range out {
		if f.Order != i {
			t.Errorf("fragment %d: order %d", i, f.Order)
		}
	}
}

func texts(frags []Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}
