package cmd

import (
	"context"
	"fmt"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/ffmpeg"
	"github.com/gwlsn/shrinkherd/internal/jobs"
	"github.com/gwlsn/shrinkherd/internal/logger"
	"github.com/gwlsn/shrinkherd/internal/scan"
	"github.com/gwlsn/shrinkherd/internal/store"
	"github.com/gwlsn/shrinkherd/internal/util"
)

// runBatch discovers inputs, resolves per-file parameters, and drives
// the worker pool over the whole tree. Only failures to start are
// returned; per-job problems end up in the summary instead.
func runBatch(ctx context.Context, cfg *config.Config) error {
	var minSize int64
	if cfg.MinimumSize != "" {
		parsed, err := util.ParseSize(cfg.MinimumSize)
		if err != nil {
			return err
		}
		minSize = parsed
	}

	limit, err := jobs.JobLimit(cfg)
	if err != nil {
		return err
	}

	matcher, err := scan.NewMatcher(cfg.VideoRoot, cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}
	walker := &scan.Walker{
		Root:       cfg.VideoRoot,
		OutputRoot: cfg.OutputRoot(),
		Matcher:    matcher,
		Limit:      cfg.Limit,
	}
	sources, err := walker.Discover()
	if err != nil {
		return fmt.Errorf("discover inputs under %s: %w", cfg.VideoRoot, err)
	}
	if len(sources) == 0 {
		logger.Info("No videos to encode", "root", cfg.VideoRoot)
		return nil
	}
	logger.Info("Starting batch", "files", len(sources), "jobs", limit, "codec", string(cfg.VideoCodec()))

	prober := ffmpeg.NewProber(cfg.FFprobePath, cfg.FFmpegPath)
	resolver := ffmpeg.NewResolver(cfg, prober)

	agg := jobs.NewAggregator()
	runner := ffmpeg.NewRunner(cfg.FFmpegPath)
	proc := jobs.NewProcessor(cfg, runner, agg, minSize)
	pool := jobs.NewPool(proc, agg)

	var tasks []jobs.Task
	if cfg.SlowStart {
		for rank := 0; rank < limit-1; rank++ {
			tasks = append(tasks, jobs.Task{Wait: &jobs.Waiter{
				Rank:  rank,
				Limit: limit,
				Snapshot: func(ctx context.Context) []int32 {
					return jobs.ExternalEncoders(ctx, cfg.FFmpegPath)
				},
				Done: pool.CompletionFlag(),
			}})
		}
	}
	for _, source := range sources {
		crf := resolver.CRF(ctx, source)
		args, err := resolver.BuildArgs(ctx, source, crf)
		if err != nil {
			agg.Report(source, fmt.Sprintf("Could not build encoder arguments: %v", err))
			continue
		}
		desc, err := jobs.NewDescriptor(cfg, source, crf, args)
		if err != nil {
			agg.Report(source, err.Error())
			continue
		}
		tasks = append(tasks, jobs.Task{Job: desc})
	}

	report := pool.Run(ctx, tasks, limit)
	jobs.Emit(report.Records)
	logger.Info("Batch finished",
		"completed", report.Completed,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	if !cfg.NoHistory {
		recordHistory(cfg, report)
	}
	return nil
}

// recordHistory journals the batch outcomes. Never fatal.
func recordHistory(cfg *config.Config, report jobs.BatchReport) {
	st, err := store.Open(cfg.OutputRoot())
	if err != nil {
		logger.Warn("Could not open the history database", "error", err)
		return
	}
	defer st.Close()
	if err := st.RecordBatch(report.Outcomes); err != nil {
		logger.Warn("Could not record batch history", "error", err)
	}
}
