// Package json wraps goccy/go-json for the page codec and NDJSON export.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value
type RawMessage = gojson.RawMessage

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is a single well-formed JSON value
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// StreamingEncoder writes values one at a time, either as JSON lines or
// as the elements of a single JSON array.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	closed      bool
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)

	se := &StreamingEncoder{
		writer:      w,
		encoder:     enc,
		firstRecord: true,
		isArray:     isArray,
	}

	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}

	return se, nil
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		if !se.firstRecord {
			if _, err := se.writer.Write([]byte{','}); err != nil {
				return err
			}
		}
		se.firstRecord = false
	}

	// Encode terminates every value with a newline, which doubles as the
	// JSON lines separator.
	return se.encoder.Encode(v)
}

// Close finalizes the encoding. It does not close the underlying writer.
func (se *StreamingEncoder) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	if se.isArray {
		_, err := se.writer.Write([]byte{']', '\n'})
		return err
	}
	return nil
}
