// Package sources registers every built-in dataset source. Import it for
// its side effects.
package sources

import (
	// Import all sources to trigger init() registration
	_ "github.com/ajitpratap0/meddevices/pkg/connector/sources/gudid"
	_ "github.com/ajitpratap0/meddevices/pkg/connector/sources/pma"
	_ "github.com/ajitpratap0/meddevices/pkg/connector/sources/pmn"
)
