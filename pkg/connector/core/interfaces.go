// Package core defines the contracts shared by dataset sources, the
// load driver and destinations.
package core

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/clients"
	"github.com/ajitpratap0/meddevices/pkg/config"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// Source makes one dataset available locally and describes how to read it
type Source interface {
	// Name is the registry name, e.g. "pma"
	Name() string
	// Collection is the destination collection for the source's records
	Collection() string
	// Fetch brings every unit of the dataset into the cache. A non-nil
	// error means the source as a whole is unusable; per-unit failures
	// are reported through the Dataset instead.
	Fetch(ctx context.Context) (*Dataset, error)
}

// Destination stores records into named collections
type Destination interface {
	Name() string
	// Write consumes records until the sequence ends or yields an error,
	// and returns the number of records stored.
	Write(ctx context.Context, collection string, records iter.Seq2[models.Record, error]) (int64, error)
	Close(ctx context.Context) error
}

// Env carries the shared dependencies handed to source factories
type Env struct {
	Store *cache.Store
	// Client is used for small requests such as listing pages
	Client *clients.HTTPClient
	// ArchiveClient is used for ZIP downloads. Defaults to Client.
	ArchiveClient *clients.HTTPClient
	// Release is the GUDID full release identifier (YYYYMMDD)
	Release string
	// LegacyGUDID selects the paginated listing over the full release
	LegacyGUDID bool
	// Endpoints overrides the public download locations
	Endpoints config.EndpointsConfig
	Logger    *zap.Logger
}

// Archives returns the client used for archive downloads
func (e *Env) Archives() *clients.HTTPClient {
	if e.ArchiveClient != nil {
		return e.ArchiveClient
	}
	return e.Client
}

// Log returns the environment logger, never nil
func (e *Env) Log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
