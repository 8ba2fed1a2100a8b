// Package gudid adapts the Global Unique Device Identification Database.
//
// Two variants exist. The full release downloads one monthly ZIP holding
// device.txt, a pipe-delimited flat file. The legacy listing walks the
// paginated implantable-device JSON API.
package gudid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
)

const (
	// Name is the registry name of the source
	Name = "gudid"
	// Collection receives GUDID devices
	Collection = "gudid"
	// ReleaseBaseURL hosts the monthly full release archives
	ReleaseBaseURL = "https://accessgudid.nlm.nih.gov/release_files/download/"
	// DeviceFile is the flat file extracted from a full release
	DeviceFile = "device.txt"

	releaseLayout = "20060102"
)

// Release identifies a monthly full release as YYYYMMDD
type Release string

// ParseRelease validates a release identifier
func ParseRelease(s string) (Release, error) {
	if _, err := time.Parse(releaseLayout, s); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "release must be a YYYYMMDD date").
			WithDetail("release", s)
	}
	return Release(s), nil
}

// CurrentRelease returns the release published on the first of now's month
func CurrentRelease(now time.Time) Release {
	return Release(now.Format("200601") + "01")
}

// ArchiveName is the file name of the release ZIP
func (r Release) ArchiveName() string {
	return fmt.Sprintf("AccessGUDID_Delimited_Full_Release_%s.zip", r)
}

// Option configures a GUDID source
type Option func(*options)

type options struct {
	releaseBaseURL string
	listingURL     string
}

// WithReleaseBaseURL overrides ReleaseBaseURL. It must end in a slash.
func WithReleaseBaseURL(u string) Option {
	return func(o *options) { o.releaseBaseURL = u }
}

// WithListingURL overrides ListingURL
func WithListingURL(u string) Option {
	return func(o *options) { o.listingURL = u }
}

func buildOptions(opts []Option) options {
	o := options{releaseBaseURL: ReleaseBaseURL, listingURL: ListingURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ReleaseSource loads one monthly full release
type ReleaseSource struct {
	release Release
	url     string
	store   *cache.Store
	fetcher *fetch.Archives
	logger  *zap.Logger
}

// NewRelease creates a full release source for release
func NewRelease(env *core.Env, release Release, opts ...Option) *ReleaseSource {
	o := buildOptions(opts)
	log := env.Log().With(zap.String("source", Name), zap.String("release", string(release)))
	return &ReleaseSource{
		release: release,
		url:     o.releaseBaseURL + release.ArchiveName(),
		store:   env.Store,
		fetcher: &fetch.Archives{Client: env.Archives(), Source: Name, Logger: log},
		logger:  log,
	}
}

func (s *ReleaseSource) Name() string       { return Name }
func (s *ReleaseSource) Collection() string { return Collection }

// Release returns the release this source loads
func (s *ReleaseSource) Release() Release { return s.release }

// Archive describes the download and its cache location
func (s *ReleaseSource) Archive() fetch.Archive {
	dir := s.store.Path(Name, string(s.release))
	return fetch.Archive{
		Name:   "release " + string(s.release),
		URL:    s.url,
		Dir:    dir,
		Target: s.store.Path(Name, string(s.release), DeviceFile),
	}
}

// Fetch downloads the release unless device.txt is already cached. A
// failed download is returned as an error.
func (s *ReleaseSource) Fetch(ctx context.Context) (*core.Dataset, error) {
	o, err := s.fetcher.Ensure(ctx, s.Archive())
	if err != nil {
		return nil, fmt.Errorf("gudid release %s: %w", s.release, err)
	}
	return &core.Dataset{
		Source:     Name,
		Collection: Collection,
		Units:      []core.Unit{core.NewUnit(o, core.ReadDelimited(coerce.GUDIDRules.Func()))},
	}, nil
}
