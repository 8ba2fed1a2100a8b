package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/internal/pipeline"
	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/clients"
	"github.com/ajitpratap0/meddevices/pkg/compression"
	"github.com/ajitpratap0/meddevices/pkg/config"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	csvdest "github.com/ajitpratap0/meddevices/pkg/connector/destinations/csv"
	"github.com/ajitpratap0/meddevices/pkg/connector/destinations/jsonl"
	"github.com/ajitpratap0/meddevices/pkg/connector/destinations/mongodb"
	"github.com/ajitpratap0/meddevices/pkg/connector/registry"
	"github.com/ajitpratap0/meddevices/pkg/connector/sources/gudid"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/logger"
)

// globalFlags holds the persistent flags shared by every command
type globalFlags struct {
	configFile  string
	dataDir     string
	release     string
	logLevel    string
	legacyGUDID bool
	metricsAddr string
}

// app is the per-invocation state built from flags and configuration
type app struct {
	config  *config.Config
	env     *core.Env
	logger  *zap.Logger
	metrics *http.Server
}

// resolve loads the configuration file and applies flag overrides. The
// GUDID release defaults to the current month, computed once here.
func (g *globalFlags) resolve(cmd *cobra.Command, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadFile(g.configFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir = g.dataDir
	}
	if f.Changed("release") {
		cfg.Release = g.release
	}
	if f.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if f.Changed("legacy-gudid") {
		cfg.LegacyGUDID = g.legacyGUDID
	}
	for _, o := range overrides {
		o(cfg)
	}
	if cfg.Release == "" {
		cfg.Release = string(gudid.CurrentRelease(time.Now()))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globalFlags) app(cmd *cobra.Command, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := g.resolve(cmd, overrides...)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}

	runID := fmt.Sprintf("%s-%d", cfg.Release, time.Now().Unix())
	ctx := context.WithValue(cmd.Context(), logger.RunIDKey, runID)
	log := logger.WithContext(ctx).With(zap.String("component", "meddevices-cli"))
	log.Info("configuration resolved",
		zap.String("data_dir", cfg.DataDir),
		zap.String("release", cfg.Release),
		zap.Bool("legacy_gudid", cfg.LegacyGUDID))

	a := &app{config: cfg, env: newEnv(cfg, log), logger: log}
	if g.metricsAddr != "" {
		a.metrics = serveMetrics(g.metricsAddr, log)
	}
	return a, nil
}

// newEnv builds the shared source dependencies. Archive downloads get
// their own timeout, which is unlimited by default.
func newEnv(cfg *config.Config, log *zap.Logger) *core.Env {
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.UserAgent = cfg.HTTP.UserAgent
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.MaxIdleConns = cfg.HTTP.MaxIdleConns
	httpCfg.MaxIdleConnsPerHost = cfg.HTTP.MaxIdleConns
	httpCfg.IdleConnTimeout = cfg.HTTP.IdleConnTimeout
	httpCfg.EnableHTTP2 = cfg.HTTP.EnableHTTP2

	client := clients.NewHTTPClient(httpCfg, log)
	return &core.Env{
		Store:         cache.New(cfg.DataDir),
		Client:        client,
		ArchiveClient: client.WithTimeout(cfg.HTTP.ArchiveTimeout),
		Release:       cfg.Release,
		LegacyGUDID:   cfg.LegacyGUDID,
		Endpoints:     cfg.Endpoints,
		Logger:        log,
	}
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if err := a.env.Client.Close(); err != nil {
		a.logger.Warn("failed to close http client", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// mongo connects the load destination. Mongo settings are validated
// here rather than in resolve because only load uses them.
func (a *app) mongo(ctx context.Context) (*mongodb.Destination, error) {
	if err := a.config.Mongo.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.Mongo.ConnectTimeout)
	defer cancel()
	return mongodb.Connect(ctx, a.config.Mongo, a.logger)
}

// exporter picks a file destination for path. An empty format is
// inferred from the extension left after any compression suffix.
func (a *app) exporter(path, format string) (core.Destination, error) {
	if format == "" {
		ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, compression.Extension(compression.FromPath(path)))))
		switch ext {
		case ".csv":
			format = "csv"
		case ".txt":
			format = "pipe"
		default:
			format = string(jsonl.Lines)
		}
	}

	switch format {
	case "csv":
		return csvdest.New(csvdest.Config{Path: path}, a.logger)
	case "pipe":
		return csvdest.New(csvdest.Config{Path: path, Delimiter: '|'}, a.logger)
	default:
		return jsonl.New(jsonl.Config{Path: path, Format: jsonl.Format(format)}, a.logger)
	}
}

// sources instantiates the named sources, or every registered source
// when names is empty.
func (a *app) sources(names []string) ([]core.Source, error) {
	if len(names) == 0 {
		names = registry.ListSources()
	}
	out := make([]core.Source, 0, len(names))
	for _, name := range names {
		if !registry.HasSource(name) {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown source %q (available: %s)",
				name, strings.Join(registry.ListSources(), ", "))
		}
		src, err := registry.CreateSource(name, a.env)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", name, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func (a *app) run(ctx context.Context, w io.Writer, sink core.Destination, names []string, concurrent bool) error {
	sources, err := a.sources(names)
	if err != nil {
		return err
	}

	start := time.Now()
	loader := pipeline.NewLoader(sink, &pipeline.Config{Concurrent: concurrent}, a.logger)
	results, err := loader.Run(ctx, sources)
	printResults(w, results)

	if err != nil {
		return err
	}
	a.logger.Info("done", zap.Duration("duration", time.Since(start)))
	return nil
}

// printResults writes one line per source followed by its failed units
func printResults(w io.Writer, results []pipeline.Result) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: failed: %v\n", r.Source, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s: %d records into %s (downloaded %d, cached %d, failed %d) in %s\n",
			r.Source, r.Records, r.Collection,
			r.Units.Downloaded, r.Units.Cached, r.Units.Failed,
			r.Duration.Round(time.Millisecond))
		for _, o := range r.Failed {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
}
