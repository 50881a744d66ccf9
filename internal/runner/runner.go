// Package runner 编排一次完整的汇总运行：确定来源、汇总、导出并记录运行历史。
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invhistory/internal/aggregator"
	"invhistory/internal/exporter"
	"invhistory/internal/model"
	"invhistory/internal/source"
	"invhistory/internal/store"
)

// ErrNoSources 没有可汇总的快照
var ErrNoSources = errors.New("no snapshot sources")

// Recorder 运行历史记录
type Recorder interface {
	CreateRun(id, outputPath string, runLog []model.RunLogEntry) error
	CompleteRun(id string, result store.RunResult) error
	FailRun(id, message string) error
}

// Options 运行选项
type Options struct {
	// Sources 显式指定来源；为空时扫描 Dir
	Sources []model.SnapshotSource
	Dir     string
	Pattern string

	OutputPath      string
	IncludeRunLog   bool
	Compression     string
	ReadConcurrency int

	Progress func(ProgressEvent)
}

// Report 运行报告
type Report struct {
	RunID      string              `json:"runId"`
	OutputPath string              `json:"outputPath"`
	Sources    []model.RunLogEntry `json:"sources"`
	Stats      aggregator.Stats    `json:"stats"`
	Duration   time.Duration       `json:"duration"`
	Table      model.HistoryTable  `json:"-"`
}

// Runner 运行编排器
type Runner struct {
	reader   aggregator.Reader
	recorder Recorder
	logger   zerolog.Logger
}

// New 创建运行编排器；recorder 可为 nil
func New(reader aggregator.Reader, recorder Recorder, logger zerolog.Logger) *Runner {
	return &Runner{
		reader:   reader,
		recorder: recorder,
		logger:   logger.With().Str("component", "runner").Logger(),
	}
}

// Run 执行一次汇总
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.logger.With().Str("run_id", runID).Logger()

	reportProgress(opts.Progress, runID, 0, StageStart)

	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	sink, err := exporter.ForPath(opts.OutputPath, exporter.Options{
		IncludeRunLog: opts.IncludeRunLog,
		Compression:   opts.Compression,
	})
	if err != nil {
		return nil, err
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources, err = source.Discover(opts.Dir, opts.Pattern)
		if err != nil {
			return nil, err
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSources, opts.Dir)
	}

	runLog := model.BuildRunLog(sources)
	log.Info().Int("sources", len(runLog)).Str("output", opts.OutputPath).Msg("run started")
	reportProgress(opts.Progress, runID, 10, StageDiscovered)

	if r.recorder != nil {
		if err := r.recorder.CreateRun(runID, opts.OutputPath, runLog); err != nil {
			return nil, err
		}
	}

	report, err := r.execute(ctx, runID, sink, sources, runLog, opts, log)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		if r.recorder != nil {
			if ferr := r.recorder.FailRun(runID, err.Error()); ferr != nil {
				log.Warn().Err(ferr).Msg("failed to record run failure")
			}
		}
		return nil, err
	}

	report.Duration = time.Since(start)
	if r.recorder != nil {
		if err := r.recorder.CompleteRun(runID, store.RunResult{
			SerialCount: report.Stats.Serials,
			RowsRead:    report.Stats.RowsRead,
			BlankRows:   report.Stats.BlankSerial,
		}); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("serials", report.Stats.Serials).
		Int("rows", report.Stats.RowsRead).
		Dur("duration", report.Duration).
		Msg("run completed")
	reportProgress(opts.Progress, runID, 100, StageDone)
	return report, nil
}

func (r *Runner) execute(ctx context.Context, runID string, sink exporter.Sink, sources []model.SnapshotSource, runLog []model.RunLogEntry, opts Options, log zerolog.Logger) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, runID, 20, StageAggregate)
	agg := aggregator.New(r.reader,
		aggregator.WithReadConcurrency(opts.ReadConcurrency),
		aggregator.WithLogger(log),
	)
	table, stats, err := agg.AggregateWithStats(sources)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, runID, 80, StageExport)
	if err := sink.Export(opts.OutputPath, table, runLog); err != nil {
		return nil, err
	}

	return &Report{
		RunID:      runID,
		OutputPath: opts.OutputPath,
		Sources:    runLog,
		Stats:      stats,
		Table:      table,
	}, nil
}
