// Package compression provides streaming compression for exported files.
//
// # Algorithm Selection
//
//   - LZ4: fastest, moderate ratio
//   - S2: fast, Snappy compatible framing
//   - Zstd: best ratio, good speed
//   - Gzip: widest compatibility
//
// # Basic Usage
//
//	w, err := compression.NewWriter(file, compression.Config{Algorithm: compression.Zstd})
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//
// The algorithm may be inferred from a file name with FromPath.
package compression

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 stream compression
	S2 Algorithm = "s2"
)

// Level controls the trade-off between speed and ratio
type Level int

const (
	// Fastest prioritizes speed over compression ratio
	Fastest Level = 1
	// Default balances speed and compression
	Default Level = 5
	// Better improves compression at cost of speed
	Better Level = 7
	// Best maximizes compression ratio
	Best Level = 9
)

// Config selects an algorithm and level
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`
	Level     Level     `yaml:"level" json:"level"`
}

var extensions = map[Algorithm]string{
	Gzip: ".gz",
	LZ4:  ".lz4",
	Zstd: ".zst",
	S2:   ".s2",
}

// Extension returns the conventional file extension for a, or "" for None
func Extension(a Algorithm) string {
	return extensions[a]
}

// FromPath infers the algorithm from the file extension of path
func FromPath(path string) Algorithm {
	ext := strings.ToLower(filepath.Ext(path))
	for a, e := range extensions {
		if e == ext {
			return a
		}
	}
	return None
}

// Parse validates an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(name))
	switch a {
	case "":
		return None, nil
	case None, Gzip, LZ4, Zstd, S2:
		return a, nil
	}
	return "", fmt.Errorf("unsupported compression algorithm: %s", name)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a compressor. Closing the returned writer
// flushes the compressed stream but does not close w.
func NewWriter(w io.Writer, cfg Config) (io.WriteCloser, error) {
	if cfg.Level == 0 {
		cfg.Level = Default
	}
	switch cfg.Algorithm {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, mapGzipLevel(cfg.Level))
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(cfg.Level)))
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(cfg.Level))); err != nil {
			return nil, err
		}
		return lw, nil
	case S2:
		if cfg.Level >= Better {
			return s2.NewWriter(w, s2.WriterBetterCompression()), nil
		}
		return s2.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unsupported compression algorithm: %s", cfg.Algorithm)
}

// NewReader wraps r with a decompressor for a
func NewReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unsupported compression algorithm: %s", a)
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
