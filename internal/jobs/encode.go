package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/ffmpeg"
	"github.com/gwlsn/shrinkherd/internal/logger"
	"github.com/gwlsn/shrinkherd/internal/util"
)

// JobStatus is the terminal state of one job.
type JobStatus string

const (
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
)

// Outcome is produced exactly once per Descriptor.
type Outcome struct {
	Source     string
	Output     string
	Status     JobStatus
	Message    string
	OrigSize   int64
	OutputSize int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// engineRunner abstracts the encoder invocation for tests.
type engineRunner interface {
	Run(ctx context.Context, args []string, outputPath, logPath string) error
}

// Processor executes a single job end to end: pre-flight checks, the
// encoder run, the atomic commit and the size validation. Failures stay
// local to the job; everything user-visible goes through the aggregator.
type Processor struct {
	cfg     *config.Config
	runner  engineRunner
	agg     *Aggregator
	minSize int64
}

// NewProcessor creates a Processor. minSize is the minimum input size in
// bytes (0 = no minimum).
func NewProcessor(cfg *config.Config, runner engineRunner, agg *Aggregator, minSize int64) *Processor {
	return &Processor{cfg: cfg, runner: runner, agg: agg, minSize: minSize}
}

// Process runs one job to a terminal outcome. It never returns an error:
// per-job problems become aggregator records and a failed/skipped status.
// The result is named so the deferred timestamp lands in the returned value.
func (p *Processor) Process(ctx context.Context, job *Descriptor) (out Outcome) {
	out = Outcome{Source: job.Source, Output: job.Output, StartedAt: time.Now()}
	defer func() { out.FinishedAt = time.Now() }()

	if err := p.ensureParentDir(job.Output); err != nil {
		return p.fail(&out, err.Error())
	}

	// The input may be deleted externally while the encoder runs, so the
	// original size must be read before spawning.
	srcInfo, err := os.Stat(job.Source)
	if err != nil {
		return p.fail(&out, fmt.Sprintf("Could not get original file disk space before encoding: %v", err))
	}
	out.OrigSize = srcInfo.Size()

	if p.minSize > 0 && out.OrigSize < p.minSize {
		out.Status = StatusSkipped
		out.Message = fmt.Errorf("%w (%s)", ErrInputTooSmall, util.FormatBytes(out.OrigSize)).Error()
		logger.Info("Skipping file as too small to encode", "path", job.Source, "size", out.OrigSize)
		p.agg.Report(job.Source, out.Message)
		return out
	}

	if !p.cfg.Overwrite {
		if existing := firstExisting(job.Output, job.Partial); existing != "" {
			p.agg.Report(existing, fmt.Sprintf("Output path already exists: %s", existing))
			out.Status = StatusSkipped
			out.Message = alreadyExistsError(existing).Error()
			return out
		}
	}

	runErr := p.runner.Run(ctx, job.Args, job.Partial, job.LogPath)
	if runErr != nil {
		msg := "Encoding error. Check encoder args"
		if !p.cfg.NoMap0 {
			msg += ", or try again without `-map 0`"
		}
		if !errors.Is(runErr, ffmpeg.ErrEngineExit) {
			msg = fmt.Sprintf("Encoding error: %v", runErr)
		}
		// Significant enough to show right away, not just in the summary.
		logger.Warn(msg, "path", job.Source)
		p.agg.Report(job.Source, msg)

		if _, err := os.Stat(job.Partial); err == nil {
			validateSize(p.cfg, p.agg, job.Source, job.Partial, job.Output, out.OrigSize)
			_ = os.Remove(job.Partial)
		}
		out.Status = StatusFailed
		out.Message = msg
		return out
	}

	if err := commit(job, p.cfg.Overwrite); err != nil {
		return p.fail(&out, err.Error())
	}

	validateSize(p.cfg, p.agg, job.Source, job.Output, job.Output, out.OrigSize)
	if info, err := os.Stat(job.Output); err == nil {
		out.OutputSize = info.Size()
	}
	out.Status = StatusCompleted
	return out
}

// fail records a per-job fatal problem and returns the failed outcome.
func (p *Processor) fail(out *Outcome, msg string) Outcome {
	p.agg.Report(out.Source, msg)
	out.Status = StatusFailed
	out.Message = msg
	return *out
}

// ensureParentDir creates the output's parent directory. Concurrent
// MkdirAll calls for sibling outputs are safe.
func (p *Processor) ensureParentDir(output string) error {
	parent := filepath.Dir(output)
	if info, err := os.Stat(parent); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("cannot encode to %s: parent exists but is not a directory", output)
		}
		return nil
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %v", err)
	}
	return nil
}

// firstExisting returns the first path that exists, or "".
func firstExisting(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
