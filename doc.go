// Package meddevices loads the FDA medical device datasets into MongoDB.
//
// Three public datasets are supported:
//
//   - GUDID, the Global Unique Device Identification Database. The monthly
//     full release ZIP is the default; the older paginated implantable
//     device listing is available with --legacy-gudid.
//   - 510(k) premarket notifications, published as one ZIP per era.
//   - PMA premarket approvals, published as a single ZIP.
//
// Every download is cached under the data directory, so a second run
// performs no network requests for units it already has. Flat files are
// pipe-delimited; values are coerced to booleans, dates and nulls with
// per-dataset rules before they are inserted, one collection per dataset.
//
// # Quick Start
//
//	go build -o bin/meddevices ./cmd/meddevices
//	./bin/meddevices fetch                      # download and parse everything
//	./bin/meddevices load --host 127.0.0.1      # insert into medical_devices
//	./bin/meddevices export pma pma.jsonl.zst   # NDJSON export
//
// # Key Packages
//
//	pkg/fetch        - Paginated and archive fetchers with per-unit outcomes
//	pkg/cache        - Local cache layout and ZIP extraction
//	pkg/delimited    - Pipe-delimited flat file reader
//	pkg/coerce       - Value coercion rules
//	pkg/connector    - Sources, destinations and the source registry
//	internal/pipeline - Load driver running sources into a destination
//	pkg/config       - YAML configuration with environment substitution
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//
// # Failure Handling
//
// A failed listing page or 510(k) era is logged and skipped while the
// rest of the dataset loads. A failed GUDID release or PMA download
// aborts that dataset. Missing or malformed page count metadata ends the
// whole run with exit status 1.
package meddevices
