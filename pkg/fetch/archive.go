package fetch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/clients"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
)

// Archive is a remote ZIP whose extraction yields Target
type Archive struct {
	// Name labels the unit in outcomes and logs
	Name string
	URL  string
	// Dir receives the extracted entries
	Dir string
	// Target is the flat file whose presence marks the archive as cached
	Target string
}

// Archives downloads and extracts ZIP archives
type Archives struct {
	Client *clients.HTTPClient
	Source string
	Logger *zap.Logger
}

// Ensure makes a.Target available. When it already exists no request is
// made. Failures are returned to the caller.
func (f *Archives) Ensure(ctx context.Context, a Archive) (Outcome, error) {
	if cache.Exists(a.Target) {
		f.logger().Debug("archive cached", zap.String("unit", a.Name), zap.String("path", a.Target))
		return record(f.Source, Outcome{Unit: a.Name, Path: a.Target, Status: StatusCached}), nil
	}

	if err := cache.EnsureDir(a.Dir); err != nil {
		return record(f.Source, failed(a.Name, a.Target, err)), err
	}

	f.logger().Info("downloading archive", zap.String("unit", a.Name), zap.String("url", a.URL))
	timer := metrics.NewTimer()
	data, err := f.Client.GetBytes(ctx, a.URL)
	if err != nil {
		return record(f.Source, failed(a.Name, a.Target, err)), err
	}
	metrics.DownloadedBytes.WithLabelValues(f.Source).Add(float64(len(data)))

	if _, err := cache.ExtractZip(data, a.Dir); err != nil {
		return record(f.Source, failed(a.Name, a.Target, err)), err
	}
	if !cache.Exists(a.Target) {
		err := errors.New(errors.ErrorTypeArchive, "archive does not contain the expected file").
			WithDetail("url", a.URL).
			WithDetail("target", a.Target)
		return record(f.Source, failed(a.Name, a.Target, err)), err
	}

	f.logger().Info("archive extracted",
		zap.String("unit", a.Name),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", timer.Stop()))
	return record(f.Source, Outcome{Unit: a.Name, Path: a.Target, Status: StatusDownloaded}), nil
}

// FetchAll ensures every archive in parallel with no concurrency limit.
// Outcomes are in the order of archives; one failing archive does not
// affect the others.
func (f *Archives) FetchAll(ctx context.Context, archives []Archive) []Outcome {
	outcomes := make([]Outcome, len(archives))

	var g errgroup.Group
	for i, a := range archives {
		g.Go(func() error {
			o, err := f.Ensure(ctx, a)
			if err != nil {
				f.logger().Warn("archive unavailable", zap.String("unit", a.Name), zap.Error(err))
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (f *Archives) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
