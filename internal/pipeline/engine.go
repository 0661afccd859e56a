package pipeline

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/lawtext/canon/internal/fragment"
	"github.com/lawtext/canon/internal/parser"
	"github.com/lawtext/canon/internal/structure"
)

// Engine is the pure per-document transformation: raw input bytes in,
// canonical document bytes out. It holds no per-document state, so one
// engine can serve any number of workers.
type Engine struct {
	tuning Tuning
	log    *slog.Logger
}

// NewEngine builds an engine with the given tuning.
func NewEngine(tuning Tuning, log *slog.Logger) *Engine {
	return &Engine{tuning: tuning, log: log}
}

// StructureFragments runs the full six-stage pipeline over an extracted
// fragment stream envelope and renders the canonical document. Element-level
// problems are absorbed with warnings; only a document that cannot be
// structured at all errors out.
func (e *Engine) StructureFragments(data []byte) ([]byte, error) {
	in, err := fragment.DecodeStream(data, e.log)
	if err != nil {
		return nil, err
	}
	if len(in.PageHeights) == 0 {
		return nil, fragment.ErrMissingPageHeight
	}

	frags := fragment.Preprocess(in.Fragments, in.PageHeights, e.tuning.Fragment, e.log)
	if len(frags) == 0 {
		return nil, fragment.ErrNoFragments
	}

	lines, err := fragment.Reorder(frags, in.PageHeights, e.tuning.Fragment.ClusterMarginRatio)
	if err != nil {
		return nil, err
	}

	tree := parser.BuildTree(lines, e.tuning.Parser, e.log)
	structure.Segment(tree, e.tuning.Segment)
	structure.TagEnumerations(tree)
	structure.ResolveFootnotes(tree, e.tuning.Footnote, e.log)
	structure.AlignMarginalia(tree, e.log)
	structure.SynthesizeLinks(tree, lines, in.Links, in.PageHeights, e.tuning.Links, e.log)

	out, err := tree.RenderBytes()
	if err != nil {
		return nil, fmt.Errorf("render canonical document: %w", err)
	}
	return out, nil
}

// StructureHTML runs stages 3-6 over scraped portal HTML. The markup tree
// enters the pipeline after the portal cleanup pass, structurally analogous
// to the reordered fragment sequence.
func (e *Engine) StructureHTML(data []byte) ([]byte, error) {
	tree, err := parser.ParsePortal(bytes.NewReader(data), e.tuning.Parser, e.log)
	if err != nil {
		return nil, err
	}

	structure.Segment(tree, e.tuning.Segment)
	structure.TagEnumerations(tree)
	structure.ResolveFootnotes(tree, e.tuning.Footnote, e.log)
	structure.AlignMarginalia(tree, e.log)
	structure.SynthesizeLinks(tree, nil, nil, nil, e.tuning.Links, e.log)

	out, err := tree.RenderBytes()
	if err != nil {
		return nil, fmt.Errorf("render canonical document: %w", err)
	}
	return out, nil
}
