// Package pmn adapts the FDA 510(k) premarket notification archives.
// Filings are split into five era archives, each holding one
// pipe-delimited flat file named after the archive.
package pmn

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/connector/registry"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
)

const (
	// Name is the registry name of the source
	Name = "510k"
	// Collection receives 510(k) notifications
	Collection = "510k"
	// BaseURL hosts the era archives
	BaseURL = "http://www.accessdata.fda.gov/premarket/ftparea/"
)

// Eras lists the archives from newest to oldest
var Eras = []string{
	"pmn96cur", // 1996 - current
	"pmn9195",  // 1991 - 1995
	"pmn8690",  // 1986 - 1990
	"pmn8185",  // 1981 - 1985
	"pmn7680",  // 1976 - 1980
}

func init() {
	urls := make([]string, len(Eras))
	for i, era := range Eras {
		urls[i] = BaseURL + era + ".zip"
	}
	registry.RegisterSource(registry.SourceInfo{
		Name:        Name,
		Collection:  Collection,
		Description: "510(k) premarket notifications, one archive per era",
		URLs:        urls,
	}, func(env *core.Env) (core.Source, error) {
		var opts []Option
		if u := env.Endpoints.Premarket; u != "" {
			opts = append(opts, WithBaseURL(u))
		}
		return New(env, opts...), nil
	})
}

// Source loads every era archive
type Source struct {
	baseURL string
	eras    []string
	store   *cache.Store
	fetcher *fetch.Archives
}

// Option configures a Source
type Option func(*Source)

// WithBaseURL overrides BaseURL. It must end in a slash.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithEras restricts the source to the given eras
func WithEras(eras ...string) Option {
	return func(s *Source) { s.eras = eras }
}

// New creates a 510(k) source
func New(env *core.Env, opts ...Option) *Source {
	s := &Source{
		baseURL: BaseURL,
		eras:    Eras,
		store:   env.Store,
		fetcher: &fetch.Archives{
			Client: env.Archives(),
			Source: Name,
			Logger: env.Log().With(zap.String("source", Name)),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string       { return Name }
func (s *Source) Collection() string { return Collection }

// Archives describes every era download in era order
func (s *Source) Archives() []fetch.Archive {
	dir := s.store.Path(Name)
	archives := make([]fetch.Archive, len(s.eras))
	for i, era := range s.eras {
		archives[i] = fetch.Archive{
			Name:   era,
			URL:    s.baseURL + era + ".zip",
			Dir:    dir,
			Target: s.store.Path(Name, era+".txt"),
		}
	}
	return archives
}

// Fetch downloads every missing era in parallel. An era that cannot be
// fetched becomes a failed unit; the others are unaffected.
func (s *Source) Fetch(ctx context.Context) (*core.Dataset, error) {
	outcomes := s.fetcher.FetchAll(ctx, s.Archives())

	read := core.ReadDelimited(coerce.PremarketRules.Func())
	ds := &core.Dataset{Source: Name, Collection: Collection, Units: make([]core.Unit, len(outcomes))}
	for i, o := range outcomes {
		ds.Units[i] = core.NewUnit(o, read)
	}
	return ds, nil
}
