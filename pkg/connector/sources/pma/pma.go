// Package pma adapts the FDA premarket approval archive
package pma

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/connector/registry"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
)

const (
	// Name is the registry name of the source
	Name = "pma"
	// Collection receives premarket approvals
	Collection = "pma"
	// URL is the archive location
	URL = "http://www.accessdata.fda.gov/premarket/ftparea/pma.zip"
	// FlatFile is the file extracted from the archive
	FlatFile = "pma.txt"
)

func init() {
	registry.RegisterSource(registry.SourceInfo{
		Name:        Name,
		Collection:  Collection,
		Description: "Premarket approvals, single archive",
		URLs:        []string{URL},
	}, func(env *core.Env) (core.Source, error) {
		var opts []Option
		if u := env.Endpoints.Premarket; u != "" {
			opts = append(opts, WithURL(u+path.Base(URL)))
		}
		return New(env, opts...), nil
	})
}

// Source loads the PMA archive
type Source struct {
	url     string
	store   *cache.Store
	fetcher *fetch.Archives
}

// Option configures a Source
type Option func(*Source)

// WithURL overrides URL
func WithURL(u string) Option {
	return func(s *Source) { s.url = u }
}

// New creates a PMA source
func New(env *core.Env, opts ...Option) *Source {
	s := &Source{
		url:   URL,
		store: env.Store,
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

// Archive describes the download and its cache location
func (s *Source) Archive() fetch.Archive {
	return fetch.Archive{
		Name:   Name,
		URL:    s.url,
		Dir:    s.store.Path(Name),
		Target: s.store.Path(Name, FlatFile),
	}
}

// Fetch downloads the archive unless pma.txt is cached. A failed
// download is returned as an error.
func (s *Source) Fetch(ctx context.Context) (*core.Dataset, error) {
	o, err := s.fetcher.Ensure(ctx, s.Archive())
	if err != nil {
		return nil, fmt.Errorf("pma: %w", err)
	}
	return &core.Dataset{
		Source:     Name,
		Collection: Collection,
		Units:      []core.Unit{core.NewUnit(o, core.ReadDelimited(coerce.PremarketRules.Func()))},
	}, nil
}
