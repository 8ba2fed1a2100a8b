package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/config"
	"github.com/ajitpratap0/meddevices/pkg/connector/registry"
	"github.com/ajitpratap0/meddevices/pkg/errors"

	// Register the dataset sources
	_ "github.com/ajitpratap0/meddevices/pkg/connector/sources"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if code := exitCode(err, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// exitCode reports err on w and returns the process exit status. A fatal
// error is marked so it stands out from per-source failures.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.IsFatal(err) {
		fmt.Fprintln(w, "fatal:", err)
	} else {
		fmt.Fprintln(w, err)
	}
	return 1
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "meddevices",
		Short: "Load FDA medical device datasets into MongoDB",
		Long: `meddevices downloads the GUDID device database, the 510(k) premarket
notifications and the PMA approvals, caches them under the data directory
and loads them into MongoDB collections or NDJSON files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to a YAML configuration file")
	pf.StringVar(&flags.dataDir, "data-dir", config.DefaultDataDir, "Cache directory for downloaded datasets")
	pf.StringVar(&flags.release, "release", "", "GUDID full release (YYYYMMDD); defaults to the current month's release")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.legacyGUDID, "legacy-gudid", false, "Load GUDID from the paginated implantable device listing")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	root.AddCommand(
		newFetchCommand(flags),
		newLoadCommand(flags),
		newExportCommand(flags),
		newListCommand(),
		newConfigCommand(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "meddevices v%s\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
				fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

func newFetchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [sources...]",
		Short: "Download and parse datasets without loading them",
		Long: `Download every unit of the given sources into the cache and parse them,
printing record counts and failed units. With no arguments all sources
are fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.run(cmd.Context(), cmd.OutOrStdout(), nil, args, false)
		},
	}
}

func newLoadCommand(flags *globalFlags) *cobra.Command {
	var (
		host       string
		port       int
		name       string
		batchSize  int
		concurrent bool
	)

	cmd := &cobra.Command{
		Use:   "load [sources...]",
		Short: "Load datasets into MongoDB",
		Long: `Fetch the given sources and insert their records into MongoDB, one
collection per source. With no arguments all sources are loaded.

Example:
  meddevices load --host 127.0.0.1 --port 27017 --name medical_devices gudid 510k`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.app(cmd, func(cfg *config.Config) {
				f := cmd.Flags()
				if f.Changed("host") {
					cfg.Mongo.Host = host
				}
				if f.Changed("port") {
					cfg.Mongo.Port = port
				}
				if f.Changed("name") {
					cfg.Mongo.Database = name
				}
				if f.Changed("batch-size") {
					cfg.Mongo.BatchSize = batchSize
				}
			})
			if err != nil {
				return err
			}
			defer a.close()

			sink, err := a.mongo(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := sink.Close(context.Background()); err != nil {
					a.logger.Warn("failed to close destination", zap.Error(err))
				}
			}()
			return a.run(cmd.Context(), cmd.OutOrStdout(), sink, args, concurrent)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "MongoDB host (IP address or localhost)")
	cmd.Flags().IntVar(&port, "port", config.DefaultMongoPort, "MongoDB port")
	cmd.Flags().StringVar(&name, "name", config.DefaultDatabase, "Database name")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "Documents per insert batch")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "Fetch all sources in parallel before loading")
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <source> <file>",
		Short: "Export a dataset to a file",
		Long: `Fetch a source and write its records to file. The format follows the
extension unless --format is given: .csv writes comma separated values,
.txt writes pipe-delimited rows and anything else newline-delimited JSON.
A .gz, .zst, .lz4 or .s2 suffix compresses the output.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.app(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sink, err := a.exporter(args[1], format)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), sink, args[:1], false)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Output format (lines, array, csv or pipe)")
	return cmd
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config <file>",
		Short: "Write the resolved configuration as YAML",
		Long: `Resolve the configuration file, environment and flags exactly as the
other commands do and write the result to file. The output can be passed
back with --config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write configuration").
					WithDetail("path", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", args[0])
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available sources",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Sources:")
			for _, name := range registry.ListSources() {
				info, _ := registry.Info(name)
				fmt.Fprintf(out, "  - %s -> %s: %s\n", info.Name, info.Collection, info.Description)
				for _, u := range info.URLs {
					fmt.Fprintf(out, "      %s\n", u)
				}
			}
		},
	}
}
