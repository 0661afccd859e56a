package structure

import (
	"regexp"
	"strings"

	"github.com/lawtext/canon/internal/doctree"
)

var (
	enumLitRe  = regexp.MustCompile(`^[a-z]\.$`)
	enumZiffRe = regexp.MustCompile(`^\d{1,2}\.$`)
)

// TagEnumerations is an independent classification pass: blocks whose direct
// text (nested superscripts excluded) is a lettered, numbered or dash marker
// get the matching enumeration class. Tagging never alters document order.
func TagEnumerations(t *doctree.Tree) {
	for _, blk := range t.Blocks() {
		if t.Node(blk).Kind != doctree.KindElement {
			continue
		}
		if t.HasClass(blk, "provision") || t.HasClass(blk, "marginalia") {
			continue
		}
		text := strings.TrimSpace(t.DirectText(blk))
		switch {
		case enumLitRe.MatchString(text):
			t.AddClass(blk, "enum-lit")
		case enumZiffRe.MatchString(text):
			t.AddClass(blk, "enum-ziff")
		case text == "–" || text == "—":
			t.AddClass(blk, "enum-dash")
		}
	}
}
