package fetch

import (
	"context"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/clients"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
)

// TotalPagesHeader carries the page count of a paginated listing
const TotalPagesHeader = "X-Total-Pages"

// Pages fetches a paginated JSON listing into Dir as <page>.json
type Pages struct {
	Client *clients.HTTPClient
	// URL is the listing endpoint without the page query parameter
	URL    string
	Dir    string
	Source string
	Logger *zap.Logger

	// Validate checks a page body before it is cached. Nil accepts any
	// well-formed JSON.
	Validate func(data []byte) error
}

// Count discovers the number of pages with a single HEAD request.
// Any failure is an ErrorTypePagination error: without a page count the
// listing cannot be fetched at all.
func (p *Pages) Count(ctx context.Context) (int, error) {
	h, err := p.Client.Head(ctx, p.URL)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypePagination, "failed to discover page count").
			WithDetail("url", p.URL)
	}

	raw := strings.TrimSpace(h.Get(TotalPagesHeader))
	if raw == "" {
		return 0, errors.Newf(errors.ErrorTypePagination, "response has no %s header", TotalPagesHeader).
			WithDetail("url", p.URL)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.ErrorTypePagination, "invalid %s header %q", TotalPagesHeader, raw).
			WithDetail("url", p.URL)
	}
	return n, nil
}

// PagePath is the cache file for page (1-based)
func (p *Pages) PagePath(page int) string {
	return filepath.Join(p.Dir, strconv.Itoa(page)+".json")
}

// PageURL is the request URL for page (1-based)
func (p *Pages) PageURL(page int) (string, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch requests pages 1..n in parallel with no concurrency limit.
// The result has exactly n entries, element i describing page i+1. A
// failing page yields a failed Outcome and never affects its siblings.
func (p *Pages) Fetch(ctx context.Context, n int) []Outcome {
	outcomes := make([]Outcome, n)

	var g errgroup.Group
	for i := range outcomes {
		g.Go(func() error {
			outcomes[i] = p.fetchPage(ctx, i+1)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Pages) fetchPage(ctx context.Context, page int) Outcome {
	unit := "page " + strconv.Itoa(page)
	path := p.PagePath(page)

	if cache.Exists(path) {
		return record(p.Source, Outcome{Unit: unit, Path: path, Status: StatusCached})
	}

	target, err := p.PageURL(page)
	if err != nil {
		return record(p.Source, failed(unit, path,
			errors.Wrap(err, errors.ErrorTypeConfig, "invalid listing URL")))
	}

	data, err := p.Client.GetBytes(ctx, target)
	if err != nil {
		p.logger().Debug("page fetch failed", zap.Int("page", page), zap.Error(err))
		return record(p.Source, failed(unit, path, err))
	}
	if err := p.validate(data); err != nil {
		p.logger().Debug("page rejected", zap.Int("page", page), zap.Error(err))
		return record(p.Source, failed(unit, path,
			errors.Wrap(err, errors.ErrorTypeData, "invalid listing page").WithDetail("url", target)))
	}
	if err := cache.WriteFile(path, data); err != nil {
		return record(p.Source, failed(unit, path, err))
	}
	metrics.DownloadedBytes.WithLabelValues(p.Source).Add(float64(len(data)))

	return record(p.Source, Outcome{Unit: unit, Path: path, Status: StatusDownloaded})
}

func (p *Pages) validate(data []byte) error {
	if p.Validate != nil {
		return p.Validate(data)
	}
	if !jsonpool.Valid(data) {
		return errors.New(errors.ErrorTypeData, "body is not JSON")
	}
	return nil
}

func (p *Pages) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func record(source string, o Outcome) Outcome {
	metrics.FetchUnits.WithLabelValues(source, string(o.Status)).Inc()
	return o
}
