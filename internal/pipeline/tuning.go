package pipeline

import (
	"fmt"
	"os"

	"github.com/lawtext/canon/internal/fragment"
	"github.com/lawtext/canon/internal/parser"
	"github.com/lawtext/canon/internal/structure"
	"gopkg.in/yaml.v3"
)

// Tuning aggregates every documented heuristic constant of the six stages.
// All values have defaults; a YAML tuning file overrides individual fields.
type Tuning struct {
	Fragment fragment.Options          `yaml:"fragment"`
	Parser   parser.Options            `yaml:"parser"`
	Segment  structure.SegmentOptions  `yaml:"segment"`
	Footnote structure.FootnoteOptions `yaml:"footnote"`
	Links    structure.LinkOptions     `yaml:"links"`
}

// DefaultTuning returns the tuned defaults of every stage.
func DefaultTuning() Tuning {
	return Tuning{
		Fragment: fragment.DefaultOptions(),
		Parser:   parser.DefaultOptions(),
		Segment:  structure.DefaultSegmentOptions(),
		Footnote: structure.DefaultFootnoteOptions(),
		Links:    structure.DefaultLinkOptions(),
	}
}

// LoadTuning reads a YAML tuning file over the defaults. An empty path
// returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning file: %w", err)
	}
	return t, nil
}
