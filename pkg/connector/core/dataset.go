package core

import (
	"context"
	"iter"
	"os"

	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/delimited"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// ReadFunc parses the cache file at path into records
type ReadFunc func(path string) iter.Seq2[models.Record, error]

// Unit is one fetched piece of a dataset together with its reader
type Unit struct {
	fetch.Outcome
	read ReadFunc
}

// NewUnit pairs an outcome with the reader for its cache file
func NewUnit(o fetch.Outcome, read ReadFunc) Unit {
	return Unit{Outcome: o, read: read}
}

// Dataset is the result of fetching a source
type Dataset struct {
	Source     string
	Collection string
	// Units are in request order
	Units []Unit
}

// Outcomes returns the fetch outcome of every unit
func (d *Dataset) Outcomes() []fetch.Outcome {
	out := make([]fetch.Outcome, len(d.Units))
	for i, u := range d.Units {
		out[i] = u.Outcome
	}
	return out
}

// Failed returns the outcomes of units that could not be fetched
func (d *Dataset) Failed() []fetch.Outcome {
	var out []fetch.Outcome
	for _, u := range d.Units {
		if !u.OK() {
			out = append(out, u.Outcome)
		}
	}
	return out
}

// Summary counts units by fetch status
func (d *Dataset) Summary() fetch.Summary {
	return fetch.Summarize(d.Outcomes())
}

// Records yields the records of every available unit in unit order.
// Failed units contribute nothing. A unit whose cache file cannot be read
// is marked failed with the read error and the sequence moves on to the
// next unit; records it yielded before the error stay delivered. Check
// Failed or Summary once the sequence is drained.
func (d *Dataset) Records() iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		parsed := metrics.RecordsParsed.WithLabelValues(d.Source)
		for i := range d.Units {
			u := &d.Units[i]
			if !u.OK() || u.read == nil {
				continue
			}
			for rec, err := range u.read(u.Path) {
				if err != nil {
					u.Status = fetch.StatusFailed
					u.Err = err
					break
				}
				parsed.Inc()
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Collect materializes every record of ds
func Collect(ctx context.Context, ds *Dataset) ([]models.Record, error) {
	var out []models.Record
	for rec, err := range ds.Records() {
		if err != nil {
			return out, err
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadDelimited returns a ReadFunc parsing a pipe-delimited flat file
// with the given coercion.
func ReadDelimited(fn coerce.Func, opts ...delimited.Option) ReadFunc {
	return func(path string) iter.Seq2[models.Record, error] {
		return func(yield func(models.Record, error) bool) {
			f, err := os.Open(path) //nolint:gosec // path is a cache file
			if err != nil {
				yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to open cache file").
					WithDetail("path", path))
				return
			}
			defer f.Close()

			for rec, err := range delimited.NewReader(f, fn, opts...).All() {
				if err != nil {
					yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeData, "failed to parse flat file").
						WithDetail("path", path))
					return
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}
