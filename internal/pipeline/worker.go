package pipeline

import (
	"context"
	"log/slog"
)

// Worker processes a single document job. All six stages run synchronously
// on this worker's goroutine; a job shares no mutable state with any other.
type Worker struct {
	engine *Engine
	log    *slog.Logger
}

func NewWorker(engine *Engine, log *slog.Logger) *Worker {
	return &Worker{engine: engine, log: log}
}

// Process runs the full structuring pipeline for a job. Cancellation is
// coarse-grained: an aborted job commits no output and later documents are
// unaffected.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename, "kind", job.Kind)

	if ctx.Err() != nil {
		job.SetStatus(StatusFailed, "canceled")
		return
	}
	job.SetStatus(StatusStructuring, "")

	var out []byte
	var err error
	switch job.Kind {
	case SourceHTML:
		out, err = w.engine.StructureHTML(job.input)
	default:
		out, err = w.engine.StructureFragments(job.input)
	}
	if err != nil {
		log.Error("structuring failed", "error", err)
		job.SetStatus(StatusFailed, err.Error())
		return
	}

	job.setResult(out)
	log.Info("structuring complete", "bytes", len(out))
}
