// Package models defines the record shape shared by every source and
// destination.
//
// A Record is an ordered mapping from field name to a coerced value. For
// flat files the order is the header order; the field set is whatever the
// header row declares, so it differs between sources.
package models

import (
	"bytes"
	"sort"

	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"go.mongodb.org/mongo-driver/bson"
)

// Field is a single named value of a Record.
// Value is one of nil, bool, time.Time or string for flat-file records;
// JSON page records may also carry float64, []any and map[string]any.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of fields
type Record struct {
	Fields []Field
}

// NewRecord creates an empty record with room for n fields
func NewRecord(n int) Record {
	return Record{Fields: make([]Field, 0, n)}
}

// FromMap builds a record from an unordered map. Keys are sorted so the
// result is deterministic.
func FromMap(m map[string]any) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord(len(keys))
	for _, k := range keys {
		r.Fields = append(r.Fields, Field{Name: k, Value: m[k]})
	}
	return r
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.Fields)
}

// Get returns the value stored under name
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under name, appending the field if absent
func (r *Record) Set(name string, value any) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// Names returns the field names in order
func (r Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Map returns the record as an unordered map
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// Document returns the record as an ordered BSON document
func (r Record) Document() bson.D {
	d := make(bson.D, len(r.Fields))
	for i, f := range r.Fields {
		d[i] = bson.E{Key: f.Name, Value: f.Value}
	}
	return d
}

// MarshalBSON implements bson.Marshaler so records can be handed to the
// driver directly.
func (r Record) MarshalBSON() ([]byte, error) {
	return bson.Marshal(r.Document())
}

// MarshalJSON writes the record as a JSON object in field order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonpool.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := jsonpool.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
