// Package csv exports records to delimited text files.
//
// The header row is taken from the first record of each collection. Flat
// file sources share one header per file, so every record of an era or
// release fits it; fields a later record adds are dropped and counted.
// Values are rendered as follows:
//
//   - nil becomes an empty cell
//   - bools use Config.TrueToken and Config.FalseToken
//   - dates use Config.DateLayout
//   - nested JSON values are written as compact JSON
//
// Output may be compressed like the jsonl destination.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/compression"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// Name identifies the destination in metrics and logs
const Name = "csv"

// CollectionPlaceholder in Config.Path is replaced by the collection name
const CollectionPlaceholder = "{collection}"

// Config configures the destination
type Config struct {
	// Path is the output file. It may contain {collection}.
	Path string `yaml:"path" json:"path"`
	// Delimiter defaults to ','. Use '|' to reproduce the FDA flat files.
	Delimiter  rune                  `yaml:"delimiter" json:"delimiter"`
	TrueToken  string                `yaml:"true_token" json:"true_token"`
	FalseToken string                `yaml:"false_token" json:"false_token"`
	DateLayout string                `yaml:"date_layout" json:"date_layout"`
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
		return nil, errors.New(errors.ErrorTypeConfig, "csv output path is required")
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.Delimiter == '"' || cfg.Delimiter == '\r' || cfg.Delimiter == '\n' || !utf8.ValidRune(cfg.Delimiter) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid csv delimiter %q", cfg.Delimiter)
	}
	if cfg.TrueToken == "" {
		cfg.TrueToken = "true"
	}
	if cfg.FalseToken == "" {
		cfg.FalseToken = "false"
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = time.DateOnly
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
		logger: logger.With(zap.String("component", "csv_destination")),
	}, nil
}

func (d *Destination) Name() string { return Name }

// PathFor returns the output file for collection
func (d *Destination) PathFor(collection string) string {
	return strings.ReplaceAll(d.config.Path, CollectionPlaceholder, collection)
}

// Write renders every record as a row of the collection's file, replacing
// any previous content. An empty sequence leaves an empty file.
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
	w := csv.NewWriter(bw)
	w.Comma = d.config.Delimiter

	var (
		header  []string
		index   map[string]int
		row     []string
		dropped int64
	)
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

		if header == nil {
			header = rec.Names()
			index = make(map[string]int, len(header))
			for i, name := range header {
				index[name] = i
			}
			row = make([]string, len(header))
			if err := w.Write(header); err != nil {
				return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write header")
			}
		}

		clear(row)
		for _, f := range rec.Fields {
			i, ok := index[f.Name]
			if !ok {
				dropped++
				continue
			}
			cell, err := d.format(f.Value)
			if err != nil {
				return n, errors.Wrap(err, errors.ErrorTypeDestination, "failed to format value").
					WithDetail("field", f.Name).
					WithDetail("record", n+1)
			}
			row[i] = cell
		}
		if err := w.Write(row); err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write row")
		}
		n++
		written.Inc()
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush rows")
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if err := cw.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}

	if dropped > 0 {
		d.logger.Warn("fields outside the header were dropped",
			zap.String("collection", collection),
			zap.Int64("fields", dropped))
	}
	d.logger.Info("export complete",
		zap.String("collection", collection),
		zap.String("path", path),
		zap.Int("columns", len(header)),
		zap.Int64("records", n))
	return n, nil
}

func (d *Destination) format(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if v {
			return d.config.TrueToken, nil
		}
		return d.config.FalseToken, nil
	case time.Time:
		return v.Format(d.config.DateLayout), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		b, err := jsonpool.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Close is a no-op; every Write closes its own file
func (d *Destination) Close(context.Context) error {
	return nil
}

func (d *Destination) String() string {
	return fmt.Sprintf("csv(%s)", d.config.Path)
}
