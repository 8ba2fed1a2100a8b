package gudid

import (
	"context"
	"fmt"
	"iter"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/coerce"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// ListingURL is the paginated implantable device listing
const ListingURL = "https://accessgudid.nlm.nih.gov/api/v2/devices/implantable/list.json"

// PagesDir is the cache subdirectory holding listing pages
const PagesDir = "pages"

// ListingSource loads devices from the paginated JSON listing
type ListingSource struct {
	pages  *fetch.Pages
	logger *zap.Logger
}

// NewListing creates a legacy listing source
func NewListing(env *core.Env, opts ...Option) *ListingSource {
	o := buildOptions(opts)
	log := env.Log().With(zap.String("source", Name), zap.String("variant", "listing"))
	return &ListingSource{
		pages: &fetch.Pages{
			Client: env.Client,
			URL:    o.listingURL,
			Dir:    env.Store.Path(Name, PagesDir),
			Source:   Name,
			Logger:   log,
			Validate: ValidatePage,
		},
		logger: log,
	}
}

func (s *ListingSource) Name() string       { return Name }
func (s *ListingSource) Collection() string { return Collection }

// Fetch discovers the page count and downloads every page. A missing or
// malformed page count is returned as an ErrorTypePagination error;
// failed pages are reported as failed units.
func (s *ListingSource) Fetch(ctx context.Context) (*core.Dataset, error) {
	n, err := s.pages.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("gudid listing: %w", err)
	}
	s.logger.Info("fetching listing pages", zap.Int("pages", n))

	outcomes := s.pages.Fetch(ctx, n)
	ds := &core.Dataset{Source: Name, Collection: Collection, Units: make([]core.Unit, len(outcomes))}
	for i, o := range outcomes {
		ds.Units[i] = core.NewUnit(o, ReadPage)
	}
	return ds, nil
}

type page struct {
	Devices []map[string]any `json:"devices"`
}

// ValidatePage accepts a listing page body only if it decodes as a JSON
// object with a devices array. Bodies that fail are never cached.
func ValidatePage(data []byte) error {
	var p struct {
		Devices *[]map[string]any `json:"devices"`
	}
	if err := jsonpool.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode listing page")
	}
	if p.Devices == nil {
		return errors.New(errors.ErrorTypeData, "listing page has no devices array")
	}
	return nil
}

// ReadPage parses a cached listing page into one record per entry of its
// devices array. String values go through the GUDID coercion; keys are
// sorted because JSON objects carry no order.
func ReadPage(path string) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		f, err := os.Open(path) //nolint:gosec // path is a cache file
		if err != nil {
			yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to open listing page").
				WithDetail("path", path))
			return
		}
		defer f.Close()

		var p page
		if err := jsonpool.NewDecoder(f).Decode(&p); err != nil {
			yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeData, "failed to decode listing page").
				WithDetail("path", path))
			return
		}

		for _, device := range p.Devices {
			rec := models.FromMap(device)
			for i, field := range rec.Fields {
				if s, ok := field.Value.(string); ok {
					rec.Fields[i].Value = coerce.GUDIDRules.Coerce(s)
				}
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
