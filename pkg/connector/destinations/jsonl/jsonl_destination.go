// Package jsonl exports records to newline-delimited JSON files,
// optionally compressed.
package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/compression"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// Name identifies the destination in metrics and logs
const Name = "jsonl"

// CollectionPlaceholder in Config.Path is replaced by the collection name
const CollectionPlaceholder = "{collection}"

// Format represents the JSON file format
type Format string

const (
	// Lines writes one JSON object per line
	Lines Format = "lines"
	// Array writes a single JSON array of objects
	Array Format = "array"
)

// Config configures the destination
type Config struct {
	// Path is the output file. It may contain {collection}.
	Path   string `yaml:"path" json:"path"`
	Format Format `yaml:"format" json:"format"`
	// Compression defaults to the algorithm implied by Path's extension
	Compression compression.Algorithm `yaml:"compression" json:"compression"`
	Level       compression.Level     `yaml:"level" json:"level"`
	BufferSize  int                   `yaml:"buffer_size" json:"buffer_size"`
}

// Destination writes one file per Write call
type Destination struct {
	config Config
	logger *zap.Logger
}

// New validates cfg and creates a destination
func New(cfg Config, logger *zap.Logger) (*Destination, error) {
	if cfg.Path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "jsonl output path is required")
	}
	switch cfg.Format {
	case "":
		cfg.Format = Lines
	case Lines, Array:
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown json format %q", cfg.Format)
	}
	if cfg.Compression == "" {
		cfg.Compression = compression.FromPath(cfg.Path)
	}
	if _, err := compression.Parse(string(cfg.Compression)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Destination{
		config: cfg,
		logger: logger.With(zap.String("component", "jsonl_destination")),
	}, nil
}

func (d *Destination) Name() string { return Name }

// PathFor returns the output file for collection
func (d *Destination) PathFor(collection string) string {
	return strings.ReplaceAll(d.config.Path, CollectionPlaceholder, collection)
}

// Write encodes every record into the collection's file, replacing any
// previous content. Records keep their field order.
func (d *Destination) Write(ctx context.Context, collection string, records iter.Seq2[models.Record, error]) (n int64, err error) {
	path := d.PathFor(collection)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", path)
	}

	file, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output file")
		}
	}()

	cw, err := compression.NewWriter(file, compression.Config{Algorithm: d.config.Compression, Level: d.config.Level})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}
	bw := bufio.NewWriterSize(cw, d.config.BufferSize)

	enc, err := jsonpool.NewStreamingEncoder(bw, d.config.Format == Array)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to start output")
	}

	written := metrics.RecordsWritten.WithLabelValues(Name, collection)
	for rec, rerr := range records {
		if rerr != nil {
			return n, rerr
		}
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		if err := enc.Encode(rec); err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeDestination, "failed to encode record").
				WithDetail("record", n+1)
		}
		n++
		written.Inc()
	}

	if err := enc.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to finish output")
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if err := cw.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}

	d.logger.Info("export complete",
		zap.String("collection", collection),
		zap.String("path", path),
		zap.String("compression", string(d.config.Compression)),
		zap.Int64("records", n))
	return n, nil
}

// Close is a no-op; every Write closes its own file
func (d *Destination) Close(context.Context) error {
	return nil
}

func (d *Destination) String() string {
	return fmt.Sprintf("jsonl(%s)", d.config.Path)
}
