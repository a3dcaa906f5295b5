package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tophits/internal/core"
	"tophits/internal/metrics"
)

// ConnectFunc builds an authenticated catalog from credentials.
type ConnectFunc func(ctx context.Context, config *core.SpotifyConfig) (core.Catalog, error)

// Result summarises a completed run.
type Result struct {
	Path      string
	Playlists int
	Extracted int
	Retained  int
}

// Pipeline runs connect, resolve, extract, transform and persist in order.
// Each stage consumes the full output of the one before.
type Pipeline struct {
	config  *core.Config
	connect ConnectFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(config *core.Config, connect ConnectFunc, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		config:  config,
		connect: connect,
		logger:  logger,
		metrics: m,
	}
}

// Run executes the pipeline once. On failure the returned Result holds the
// counts reached before the failing stage.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	years := p.config.EffectiveYears()

	p.logger.Info("Starting pipeline",
		zap.Ints("years", years),
		zap.Bool("debug", p.config.Pipeline.Debug),
		zap.String("output", p.config.OutputPath()))

	var catalog core.Catalog
	err := p.stage(metrics.StageConnect, func() error {
		c, err := p.connect(ctx, &p.config.Spotify)
		if err != nil {
			return err
		}
		catalog = metrics.InstrumentCatalog(c, p.metrics)
		return nil
	})
	if err != nil {
		return result, err
	}

	var playlists core.YearPlaylists
	err = p.stage(metrics.StageResolve, func() error {
		playlists, err = ResolvePlaylists(ctx, catalog, years, p.logger.Named("resolver"), p.metrics)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Playlists = len(playlists)

	var records []core.TrackRecord
	err = p.stage(metrics.StageExtract, func() error {
		opts := ExtractOptions{
			Truncate:   p.config.Pipeline.Debug,
			SampleSize: p.config.Pipeline.SampleSize,
		}
		records, err = ExtractTracks(ctx, catalog, playlists, opts, p.logger.Named("extractor"), p.metrics)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Extracted = len(records)

	var table *core.Table
	err = p.stage(metrics.StageTransform, func() error {
		table, err = Transform(records, p.logger.Named("transformer"), p.metrics)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Retained = table.Len()

	err = p.stage(metrics.StagePersist, func() error {
		result.Path, err = Persist(table, p.config.Output.Dir, p.config.OutputFileName(), p.logger.Named("persister"))
		return err
	})
	if err != nil {
		return result, err
	}

	p.metrics.MarkSuccess(time.Now())
	p.logger.Info("Pipeline completed",
		zap.String("path", result.Path),
		zap.Int("playlists", result.Playlists),
		zap.Int("extracted", result.Extracted),
		zap.Int("retained", result.Retained))

	return result, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.ObserveStage(name, time.Since(start))

	if err != nil {
		p.logger.Error("Pipeline stage failed", zap.String("stage", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
