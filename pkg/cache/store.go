// Package cache manages the local download cache.
//
// Layout under the root directory:
//
//	gudid/<release>/device.txt   extracted full release
//	gudid/pages/<n>.json         legacy listing pages
//	510k/<era>.txt               one flat file per era archive
//	pma/pma.txt                  premarket approvals
//
// A path that exists is a cache hit. Nothing is ever expired or
// refreshed; delete the file to force a new download. Every file is
// written to a temporary sibling and renamed into place, so a path that
// exists is always complete.
package cache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/klauspost/compress/zip"
)

const (
	// DirMode is used for every directory the cache creates
	DirMode os.FileMode = 0o755
	// FileMode is used for every file the cache writes
	FileMode os.FileMode = 0o644
)

// Store is a cache rooted at a directory
type Store struct {
	Root string
}

// New returns a Store rooted at root
func New(root string) *Store {
	return &Store{Root: root}
}

// Path joins elem onto the cache root
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Root}, elem...)...)
}

// Exists reports whether path is present on disk
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dir and its parents if absent
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create cache directory").
			WithDetail("dir", dir)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories. The file
// appears only once fully written.
func WriteFile(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ExtractZip unpacks an in-memory archive into dir and returns the paths
// written. Entries that would land outside dir are rejected. If any entry
// fails, the files already extracted from this archive are removed again.
func ExtractZip(data []byte, dir string) (written []string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeArchive, "failed to open zip archive").
			WithDetail("bytes", len(data))
	}

	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to resolve cache directory")
	}

	defer func() {
		if err != nil {
			for _, path := range written {
				_ = os.Remove(path)
			}
			written = nil
		}
	}()

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, errors.New(errors.ErrorTypeArchive, "zip entry escapes destination").
				WithDetail("entry", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := EnsureDir(target); err != nil {
				return written, err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeArchive, "failed to open zip entry").
			WithDetail("entry", f.Name)
	}
	defer rc.Close()

	return writeAtomic(target, func(w io.Writer) error {
		if _, err := io.Copy(w, rc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeArchive, "failed to extract zip entry").
				WithDetail("entry", f.Name)
		}
		return nil
	})
}

// writeAtomic streams fill into a temporary file next to path and renames
// it over path on success. On failure the temporary file is removed and
// path is left untouched.
func writeAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create cache file").
			WithDetail("path", path)
	}
	name := tmp.Name()
	done := false
	defer func() {
		if !done {
			tmp.Close()
			os.Remove(name)
		}
	}()

	if err := fill(tmp); err != nil {
		if _, ok := err.(*errors.Error); ok {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write cache file").
			WithDetail("path", path)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to set cache file mode").
			WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close cache file").
			WithDetail("path", path)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		done = true
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move cache file into place").
			WithDetail("path", path)
	}
	done = true
	return nil
}
