// Package coerce converts raw flat-file fields into typed values.
//
// The policy is applied in a fixed order:
//
//  1. the empty string becomes nil
//  2. an exact match of the true or false token becomes a bool
//  3. a value matching the date layout becomes a time.Time
//  4. anything else is returned unchanged as a string
//
// Boolean tokens are tested before dates so that a token can never be
// read as a date. A date that fails to parse is not an error; the raw
// string is kept.
package coerce

import "time"

// Func converts a raw field value into nil, bool, time.Time or string.
type Func func(raw string) any

// Rules holds the per-source coercion parameters.
type Rules struct {
	TrueToken  string `yaml:"true_token" json:"true_token"`
	FalseToken string `yaml:"false_token" json:"false_token"`
	// DateLayout is a Go reference-time layout, e.g. "01/02/2006".
	DateLayout string `yaml:"date_layout" json:"date_layout"`
}

var (
	// GUDIDRules apply to the device identification registry.
	GUDIDRules = Rules{TrueToken: "true", FalseToken: "false", DateLayout: "2006-01-02"}

	// PremarketRules apply to the 510(k) and PMA archives.
	PremarketRules = Rules{TrueToken: "Y", FalseToken: "N", DateLayout: "01/02/2006"}
)

// Coerce applies the policy to a single value.
func (r Rules) Coerce(raw string) any {
	if raw == "" {
		return nil
	}
	switch raw {
	case r.TrueToken:
		return true
	case r.FalseToken:
		return false
	}
	if r.DateLayout != "" {
		// time.Parse with a layout carrying no zone yields UTC, i.e. a
		// naive calendar date.
		if t, err := time.Parse(r.DateLayout, raw); err == nil {
			return t
		}
	}
	return raw
}

// Func returns r.Coerce as a Func.
func (r Rules) Func() Func {
	return r.Coerce
}

// Raw keeps every value as its original string.
func Raw(raw string) any {
	return raw
}
