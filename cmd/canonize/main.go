// Command canonize batch-converts raw source documents into canonical
// structured HTML: one worker pool, one output artifact per input document,
// failed documents skipped and reported without aborting the run.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lawtext/canon/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "canonize",
		Short:        "Structure legal source documents into canonical HTML",
		SilenceUsage: true,
	}
	root.AddCommand(newProcessCmd())
	return root
}

func newProcessCmd() *cobra.Command {
	var (
		inDir      string
		outDir     string
		workers    int
		tuningPath string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process every document in a directory",
		Long: "Reads *.json fragment-stream envelopes and *.html portal scrapes " +
			"from the input directory and writes one canonical .html file per " +
			"document to the output directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

			tuning, err := pipeline.LoadTuning(tuningPath)
			if err != nil {
				return err
			}
			engine := pipeline.NewEngine(tuning, log)

			inputs, err := collectInputs(inDir)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no *.json or *.html inputs in %s", inDir)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			failed := runPool(engine, log, inputs, outDir, workers)
			log.Info("batch complete", "documents", len(inputs), "failed", failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in", ".", "input directory")
	cmd.Flags().StringVar(&outDir, "out", "out", "output directory")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent documents")
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "YAML tuning file overriding heuristics")
	return cmd
}

type input struct {
	path string
	kind pipeline.SourceKind
}

func collectInputs(dir string) ([]input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var inputs []input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json":
			inputs = append(inputs, input{path: filepath.Join(dir, e.Name()), kind: pipeline.SourceFragments})
		case ".html", ".htm":
			inputs = append(inputs, input{path: filepath.Join(dir, e.Name()), kind: pipeline.SourceHTML})
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].path < inputs[j].path })
	return inputs, nil
}

// runPool fans the documents out over a bounded worker pool. Documents are
// independent; a failure skips that document only.
func runPool(engine *pipeline.Engine, log *slog.Logger, inputs []input, outDir string, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, in := range inputs {
		sem <- struct{}{}
		wg.Add(1)
		go func(in input) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := processOne(engine, in, outDir); err != nil {
				log.Error("document failed", "path", in.path, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			log.Info("document structured", "path", in.path)
		}(in)
	}
	wg.Wait()
	return failed
}

func processOne(engine *pipeline.Engine, in input, outDir string) error {
	data, err := os.ReadFile(in.path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var out []byte
	switch in.kind {
	case pipeline.SourceHTML:
		out, err = engine.StructureHTML(data)
	default:
		out, err = engine.StructureFragments(data)
	}
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(in.path), filepath.Ext(in.path))
	target := filepath.Join(outDir, base+".html")

	// Write via a temp file so an aborted run never leaves partial output.
	tmp, err := os.CreateTemp(outDir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}
