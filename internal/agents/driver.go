// Package agents provides the shared stage driver for the LLM agent pipelines.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/logging"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Pipeline string `json:"pipeline"`
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// Progress event statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// ArtifactStore persists stage outputs of a run.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, runID uuid.UUID, stage string, content any) error
}

// ErrorRecorder is implemented by pipeline states. Stage failures are recorded on
// the state instead of being returned to the caller.
type ErrorRecorder interface {
	RecordError(msg string)
}

// Stage is one named step of a pipeline.
// Run applies its own fallback before returning an error; the driver records the
// error and moves on. Output, when set, reports the stage result for progress events
// and artifacts.
type Stage[S ErrorRecorder] struct {
	Name   string
	Run    func(ctx context.Context, state S) error
	Output func(state S) (message string, content any)
}

// Options configures a single pipeline run.
type Options struct {
	Pipeline   string
	ProjectID  string
	RunID      uuid.UUID
	Logger     *slog.Logger
	OnProgress ProgressCallback
	Artifacts  ArtifactStore
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *Options, stage, status, message string, content any) {
	if opts.OnProgress == nil {
		return
	}
	ev := ProgressEvent{
		Pipeline: opts.Pipeline,
		Stage:    stage,
		Status:   status,
		Message:  message,
		Content:  content,
	}
	if opts.RunID != uuid.Nil {
		ev.RunID = opts.RunID.String()
	}
	opts.OnProgress(ev)
}

// Run executes stages in order against state. It never returns stage errors:
// they are recorded on the state. A cancelled context records the cancellation
// and skips the remaining stages.
func Run[S ErrorRecorder](ctx context.Context, state S, stages []Stage[S], opts Options) {
	log := logging.ForPipeline(opts.Logger, opts.Pipeline, opts.ProjectID)

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			state.RecordError(fmt.Sprintf("%s: %v", stage.Name, err))
			log.Warn("pipeline cancelled", "stage", stage.Name, "error", err)
			for _, skipped := range stages[i:] {
				emitProgress(&opts, skipped.Name, StatusSkipped, "pipeline cancelled", nil)
			}
			return
		}

		emitProgress(&opts, stage.Name, StatusStarted, fmt.Sprintf("Running %s", stage.Name), nil)
		log.Debug("stage started", "stage", stage.Name)
		started := time.Now()

		err := runStage(ctx, state, stage)
		elapsed := time.Since(started)

		var message string
		var content any
		if stage.Output != nil {
			message, content = stage.Output(state)
		}

		if err != nil {
			state.RecordError(fmt.Sprintf("%s: %v", stage.Name, err))
			log.Warn("stage failed", "stage", stage.Name, "duration", elapsed, "error", err)
			if message == "" {
				message = err.Error()
			}
			emitProgress(&opts, stage.Name, StatusFailed, message, content)
		} else {
			log.Info("stage completed", "stage", stage.Name, "duration", elapsed)
			if message == "" {
				message = fmt.Sprintf("Completed %s", stage.Name)
			}
			emitProgress(&opts, stage.Name, StatusCompleted, message, content)
		}

		if opts.Artifacts != nil && opts.RunID != uuid.Nil && content != nil {
			if err := opts.Artifacts.SaveArtifact(ctx, opts.RunID, stage.Name, content); err != nil {
				log.Warn("failed to save artifact", "stage", stage.Name, "error", err)
			}
		}
	}
}

// runStage converts a panicking stage into a stage error.
func runStage[S ErrorRecorder](ctx context.Context, state S, stage Stage[S]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Run(ctx, state)
}
