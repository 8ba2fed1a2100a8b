// Package delimited parses pipe-delimited flat files into records.
//
// The first line is the header row. Every following line is split on the
// delimiter and zipped against the header: a short line yields a record
// with fewer fields, a long line drops its extra values. Ill-formed UTF-8
// never fails the parse.
package delimited

import (
	"bufio"
	"io"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Delimiter used by the FDA flat files
const Delimiter = "|"

// Reader produces records from a delimited text stream. It is single
// pass; re-open the underlying stream to read again.
type Reader struct {
	br        *bufio.Reader
	coerce    coerce.Func
	delimiter string

	header    []string
	headerErr error
	started   bool
	line      int
}

// Option configures a Reader
type Option func(*options)

type options struct {
	delimiter string
	replace   bool
}

// WithDelimiter overrides the field delimiter
func WithDelimiter(d string) Option {
	return func(o *options) { o.delimiter = d }
}

// WithReplacement keeps ill-formed byte sequences as U+FFFD instead of
// dropping them.
//
// Without it the reader cannot tell a replacement rune it produced from
// one already encoded in the file, so a well-formed U+FFFD in the input
// is dropped as well. Use WithReplacement when the source may contain it.
func WithReplacement() Option {
	return func(o *options) { o.replace = true }
}

// NewReader wraps r. A nil fn keeps raw strings.
func NewReader(r io.Reader, fn coerce.Func, opts ...Option) *Reader {
	o := options{delimiter: Delimiter}
	for _, opt := range opts {
		opt(&o)
	}
	if fn == nil {
		fn = coerce.Raw
	}

	var t transform.Transformer = runes.ReplaceIllFormed()
	if !o.replace {
		// Replace first so that stray bytes become a single rune we can drop.
		t = transform.Chain(runes.ReplaceIllFormed(), runes.Remove(runes.Predicate(isReplacement)))
	}

	return &Reader{
		br:        bufio.NewReaderSize(transform.NewReader(r, t), 64*1024),
		coerce:    fn,
		delimiter: o.delimiter,
	}
}

func isReplacement(r rune) bool {
	return r == utf8.RuneError
}

// Header returns the parsed header row, reading it on first use
func (r *Reader) Header() ([]string, error) {
	if !r.started {
		r.started = true
		line, err := r.readLine()
		if err != nil {
			if err == io.EOF {
				err = errors.New(errors.ErrorTypeData, "missing header row")
			}
			r.headerErr = err
		} else {
			r.header = strings.Split(trimRight(line), r.delimiter)
		}
	}
	return r.header, r.headerErr
}

// Read returns the next record, or io.EOF when the stream is exhausted.
// Blank lines are skipped.
func (r *Reader) Read() (models.Record, error) {
	header, err := r.Header()
	if err != nil {
		return models.Record{}, err
	}

	for {
		line, err := r.readLine()
		if err != nil {
			return models.Record{}, err
		}
		line = trimRight(line)
		if line == "" {
			continue
		}

		values := strings.Split(line, r.delimiter)
		n := min(len(header), len(values))
		rec := models.NewRecord(n)
		for i := 0; i < n; i++ {
			rec.Fields = append(rec.Fields, models.Field{Name: header[i], Value: r.coerce(values[i])})
		}
		return rec, nil
	}
}

// All yields every remaining record. Iteration stops after the first
// error, which is yielded with an empty record.
func (r *Reader) All() iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		for {
			rec, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(models.Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Line returns the number of lines consumed so far, header included
func (r *Reader) Line() int {
	return r.line
}

// readLine returns the next line without a length limit. A final line
// lacking a newline is still returned; io.EOF is reported only once
// nothing is left.
func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", io.EOF
		}
		err = nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to read line").
			WithDetail("line", r.line+1)
	}
	r.line++
	return line, nil
}

func trimRight(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// Parse is shorthand for NewReader(r, fn).All()
func Parse(r io.Reader, fn coerce.Func) iter.Seq2[models.Record, error] {
	return NewReader(r, fn).All()
}
