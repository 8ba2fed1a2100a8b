// Package mongodb bulk loads records into MongoDB collections
package mongodb

import (
	"context"
	"fmt"
	"iter"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/config"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
	"github.com/ajitpratap0/meddevices/pkg/models"
)

// Name identifies the destination in metrics and logs
const Name = "mongodb"

// batchInserter stores one batch of documents
type batchInserter interface {
	InsertBatch(ctx context.Context, collection string, docs []interface{}) error
}

// Destination writes records with unordered InsertMany batches
type Destination struct {
	client   *mongo.Client
	inserter batchInserter
	config   config.MongoConfig
	logger   *zap.Logger
}

// URI builds the connection string for cfg
func URI(cfg config.MongoConfig) string {
	return "mongodb://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Connect validates cfg, dials the server it describes and verifies it
// with a ping.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Destination, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return ConnectURI(ctx, URI(cfg), cfg, logger)
}

// ConnectURI is Connect with an explicit connection string. cfg still
// supplies the database and batching settings.
func ConnectURI(ctx context.Context, uri string, cfg config.MongoConfig, logger *zap.Logger) (*Destination, error) {
	if err := config.ValidateDatabaseName(cfg.Database); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOpts := options.Client().ApplyURI(uri)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDestination, "failed to connect to MongoDB").
			WithDetail("uri", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeDestination, "failed to ping MongoDB").
			WithDetail("uri", uri)
	}

	db := client.Database(cfg.Database)
	d := newDestination(&collectionInserter{db: db}, cfg, logger)
	d.client = client

	var buildInfo bson.M
	if err := db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&buildInfo); err != nil {
		d.logger.Warn("failed to get server version", zap.Error(err))
	} else if version, ok := buildInfo["version"].(string); ok {
		d.logger.Info("connected to MongoDB", zap.String("version", version), zap.String("database", cfg.Database))
	}

	return d, nil
}

func newDestination(ins batchInserter, cfg config.MongoConfig, logger *zap.Logger) *Destination {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Destination{
		inserter: ins,
		config:   cfg,
		logger:   logger.With(zap.String("component", "mongodb_destination")),
	}
}

func (d *Destination) Name() string { return Name }

// Write inserts records into collection in batches of BatchSize and logs
// progress every ProgressEvery records. Documents keep the field order
// of their records.
func (d *Destination) Write(ctx context.Context, collection string, records iter.Seq2[models.Record, error]) (int64, error) {
	start := time.Now()
	written := metrics.RecordsWritten.WithLabelValues(Name, collection)
	batch := make([]interface{}, 0, d.config.BatchSize)
	var n int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := d.inserter.InsertBatch(ctx, collection, batch); err != nil {
			return errors.Wrap(err, errors.ErrorTypeDestination, "bulk insert failed").
				WithDetail("collection", collection).
				WithDetail("inserted", n)
		}
		before := n
		n += int64(len(batch))
		written.Add(float64(len(batch)))
		batch = batch[:0]

		if every := int64(d.config.ProgressEvery); every > 0 && n/every != before/every {
			d.logger.Info("insert progress",
				zap.String("collection", collection),
				zap.Int64("inserted", n/every*every))
		}
		return nil
	}

	for rec, err := range records {
		if err != nil {
			return n, err
		}
		batch = append(batch, rec.Document())
		if len(batch) == d.config.BatchSize {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	if err := flush(); err != nil {
		return n, err
	}

	d.logger.Info("collection loaded",
		zap.String("collection", collection),
		zap.Int64("records", n),
		zap.Duration("duration", time.Since(start)))
	return n, nil
}

// Close disconnects the client
func (d *Destination) Close(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	if err := d.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDestination, "failed to disconnect from MongoDB")
	}
	return nil
}

func (d *Destination) String() string {
	return fmt.Sprintf("mongodb(%s/%s)", URI(d.config), d.config.Database)
}

type collectionInserter struct {
	db *mongo.Database
}

func (c *collectionInserter) InsertBatch(ctx context.Context, collection string, docs []interface{}) error {
	_, err := c.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}
