// Package fetch makes remote datasets available in the local cache.
//
// Every fetch unit (a listing page, an era archive, a release archive)
// ends in an Outcome. A unit that is already cached performs no network
// request. Downloads are written to disk in full before any parsing
// happens.
package fetch

import "fmt"

// Status is the result of fetching one unit
type Status string

const (
	// StatusCached means the cache path already existed
	StatusCached Status = "cached"
	// StatusDownloaded means the unit was fetched and written to the cache
	StatusDownloaded Status = "downloaded"
	// StatusFailed means the unit could not be made available
	StatusFailed Status = "failed"
)

// Outcome reports what happened to one fetch unit
type Outcome struct {
	// Unit names the page, era or archive
	Unit string
	// Path is the cache path that holds the unit's data
	Path   string
	Status Status
	// Err is set when Status is StatusFailed
	Err error
}

// OK reports whether Path is available for reading
func (o Outcome) OK() bool {
	return o.Status != StatusFailed
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", o.Unit, o.Status, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Unit, o.Status)
}

// Summary counts outcomes by status
type Summary struct {
	Cached     int `json:"cached"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// Summarize counts outcomes by status
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusCached:
			s.Cached++
		case StatusDownloaded:
			s.Downloaded++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

func failed(unit, path string, err error) Outcome {
	return Outcome{Unit: unit, Path: path, Status: StatusFailed, Err: err}
}
