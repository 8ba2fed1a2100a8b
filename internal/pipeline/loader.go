// Package pipeline drives sources into a destination.
//
// A run fetches each source, reports per-unit fetch outcomes, and streams
// the parsed records into the destination collection named by the
// source. Without a destination the records are only counted, which is
// how the fetch command verifies a cache.
//
// # Failure handling
//
//   - A pagination error from any source stops the run immediately.
//   - Any other source error is recorded in that source's Result and the
//     run moves on; Run reports the joined errors at the end.
//   - Failed pages and eras never fail a source, and neither does a
//     cache file that cannot be parsed. They are logged and listed in
//     Result.Failed.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
)

// Config controls how a Loader schedules sources
type Config struct {
	// Concurrent fetches every source in parallel before writing. Writes
	// stay sequential, in source order.
	Concurrent bool
}

// Result describes one source of a run
type Result struct {
	Source     string
	Collection string
	Records    int64
	Units      fetch.Summary
	Failed     []fetch.Outcome
	Duration   time.Duration
	Err        error
}

// Loader runs sources into an optional destination
type Loader struct {
	sink       core.Destination
	concurrent bool
	logger     *zap.Logger
}

// NewLoader creates a loader. sink may be nil to only count records.
func NewLoader(sink core.Destination, config *Config, logger *zap.Logger) *Loader {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		sink:       sink,
		concurrent: config.Concurrent,
		logger:     logger.With(zap.String("component", "loader")),
	}
}

type fetched struct {
	ds       *core.Dataset
	err      error
	duration time.Duration
}

// Run processes sources and returns one Result per source in order. The
// error is a fatal error if one occurred, otherwise the join of every
// source error.
func (l *Loader) Run(ctx context.Context, sources []core.Source) ([]Result, error) {
	start := time.Now()
	l.logger.Info("starting run",
		zap.Int("sources", len(sources)),
		zap.Bool("concurrent", l.concurrent),
		zap.Bool("write", l.sink != nil))

	var prefetched []fetched
	if l.concurrent {
		prefetched = l.fetchAll(ctx, sources)
		for i, f := range prefetched {
			if f.err != nil && errors.IsFatal(f.err) {
				return []Result{{Source: sources[i].Name(), Collection: sources[i].Collection(), Err: f.err}}, f.err
			}
		}
	}

	results := make([]Result, 0, len(sources))
	var errs []error
	for i, src := range sources {
		var f fetched
		if prefetched != nil {
			f = prefetched[i]
		} else {
			f = l.fetch(ctx, src)
		}

		res := l.process(ctx, src, f)
		results = append(results, res)
		if res.Err != nil {
			if errors.IsFatal(res.Err) {
				return results, res.Err
			}
			errs = append(errs, res.Err)
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	l.logger.Info("run completed",
		zap.Int("sources", len(results)),
		zap.Int("failed_sources", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return results, stderrors.Join(errs...)
}

func (l *Loader) fetchAll(ctx context.Context, sources []core.Source) []fetched {
	out := make([]fetched, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			out[i] = l.fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (l *Loader) fetch(ctx context.Context, src core.Source) fetched {
	start := time.Now()
	l.logger.Info("fetching source", zap.String("source", src.Name()))
	ds, err := src.Fetch(ctx)
	return fetched{ds: ds, err: err, duration: time.Since(start)}
}

func (l *Loader) process(ctx context.Context, src core.Source, f fetched) Result {
	res := Result{Source: src.Name(), Collection: src.Collection(), Duration: f.duration}
	log := l.logger.With(zap.String("source", src.Name()))

	if f.err != nil {
		res.Err = f.err
		log.Error("source unavailable", zap.Error(f.err))
		return res
	}

	fetchSummary := f.ds.Summary()
	log.Info("fetch complete",
		zap.Int("downloaded", fetchSummary.Downloaded),
		zap.Int("cached", fetchSummary.Cached),
		zap.Int("failed", fetchSummary.Failed))

	start := time.Now()
	n, err := l.consume(ctx, src.Collection(), f.ds)
	res.Records = n
	res.Duration += time.Since(start)

	// reading can fail further units, so outcomes are taken after consume
	res.Units = f.ds.Summary()
	res.Failed = f.ds.Failed()
	for _, o := range res.Failed {
		log.Warn("unit failed", zap.String("unit", o.Unit), zap.Error(o.Err))
	}

	if err != nil {
		res.Err = fmt.Errorf("%s: %w", src.Name(), err)
		log.Error("load failed", zap.Int64("records", n), zap.Error(err))
		return res
	}

	log.Info("source done", zap.String("collection", res.Collection), zap.Int64("records", n))
	return res
}

func (l *Loader) consume(ctx context.Context, collection string, ds *core.Dataset) (int64, error) {
	if l.sink != nil {
		return l.sink.Write(ctx, collection, ds.Records())
	}

	var n int64
	for _, err := range ds.Records() {
		if err != nil {
			return n, err
		}
		n++
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}
