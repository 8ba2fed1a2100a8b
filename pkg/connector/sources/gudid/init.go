package gudid

import (
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/connector/registry"
	"github.com/ajitpratap0/meddevices/pkg/errors"
)

func init() {
	registry.RegisterSource(registry.SourceInfo{
		Name:        Name,
		Collection:  Collection,
		Description: "GUDID device registry: monthly full release, or the implantable device listing with --legacy-gudid",
		URLs:        []string{ReleaseBaseURL + Release("YYYYMMDD").ArchiveName(), ListingURL},
	}, New)
}

// New builds the GUDID variant selected by env
func New(env *core.Env) (core.Source, error) {
	var opts []Option
	if u := env.Endpoints.GUDIDListing; u != "" {
		opts = append(opts, WithListingURL(u))
	}
	if u := env.Endpoints.GUDIDRelease; u != "" {
		opts = append(opts, WithReleaseBaseURL(u))
	}

	if env.LegacyGUDID {
		return NewListing(env, opts...), nil
	}
	if env.Release == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gudid release is required")
	}
	release, err := ParseRelease(env.Release)
	if err != nil {
		return nil, err
	}
	return NewRelease(env, release, opts...), nil
}
