// depaudit maps a project's resolved dependency graph into a component
// report and sends it to a license and vulnerability evaluation service.
//
// Usage:
//
//	depaudit scan --pom pom.xml --graph deps.json --licenses licenses.yaml
//	depaudit check --comment
//	depaudit catalog import --license-catalog licenses.db licenses.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/exploopio/depaudit/pkg/client"
	"github.com/exploopio/depaudit/pkg/core"
	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/gitenv"
	"github.com/exploopio/depaudit/pkg/graph"
	"github.com/exploopio/depaudit/pkg/licenses"
	"github.com/exploopio/depaudit/pkg/metrics"
	"github.com/exploopio/depaudit/pkg/project"
	"github.com/exploopio/depaudit/pkg/runner"
)

const appName = "depaudit"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes a policy break from other failures.
func exitCode(err error) int {
	if errors.IsPolicy(err) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Report a project's dependencies and their licenses",
		Version:       client.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	root.AddCommand(newScanCmd(), newCheckCmd(), newCatalogCmd(), newVersionCmd())
	return root
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Map the dependency graph and transfer the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, r *runner.Runner) error {
				_, err := r.Scan(ctx)
				return err
			})
		},
	}
	registerFlags(cmd.Flags())
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Submit the report for a policy check and fail on violations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, r *runner.Runner) error {
				_, err := r.Check(ctx)
				return err
			})
		},
	}
	registerFlags(cmd.Flags())
	cmd.Flags().Bool("comment", false, "Post the check summary to the open PR/MR")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the SQLite license catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import license resolution files into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("license-catalog")
			verbose, _ := cmd.Flags().GetBool("verbose")
			return importCatalog(cmd.Context(), path, args, newLogger(verbose))
		},
	}
	importCmd.Flags().String("license-catalog", "licenses.db", "SQLite license catalog")

	catalog.AddCommand(importCmd)
	return catalog
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, client.Version)
		},
	}
}

func newLogger(verbose bool) core.Logger {
	level := core.LogLevelInfo
	if verbose {
		level = core.LogLevelDebug
	}
	return core.NewDefaultLogger(appName, level)
}

// run loads the configuration, wires a Runner and calls fn with it.
func run(cmd *cobra.Command, fn func(context.Context, *runner.Runner) error) error {
	ctx := cmd.Context()
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := LoadConfig(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Verbose)

	if cfg.Skip {
		logger.Info("Skipping execution")
		return nil
	}

	p, err := project.LoadPOM(cfg.Project.POM)
	if err != nil {
		return err
	}
	sending := cmd.Name() == "check" || !cfg.SkipTransfer
	if err := cfg.Validate(p.String(), sending); err != nil {
		return err
	}

	resolver, closeResolver, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	defer closeResolver()

	collector, err := buildMetrics(cfg, p)
	if err != nil {
		return err
	}

	rcfg := &runner.Config{
		Project:           p,
		Provider:          graph.NewFileProvider(cfg.Graph, graph.WithLogger(logger)),
		Resolver:          resolver,
		GitEnv:            gitenv.DetectFromDirectory(cfg.baseDir(), logger),
		Logger:            logger,
		Metrics:           collector,
		SkipTransfer:      cfg.SkipTransfer,
		Scope:             cfg.Scope,
		PrivateComponents: cfg.PrivateComponents,
		ProjectName:       cfg.Project.Name,
		ModuleName:        cfg.Project.Module,
		ModuleID:          cfg.Project.ModuleID,
		Branch:            cfg.Project.Branch,
		Tag:               cfg.Project.Tag,
		OutputPath:        cfg.Output,
		DedupeChildren:    cfg.DedupeChildren,
		Policy:            cfg.Check,
		Comment:           cfg.Comment,
	}
	if sending {
		c, err := client.New(&cfg.Service, client.WithLogger(logger))
		if err != nil {
			return err
		}
		rcfg.Transport = c
	}

	r, err := runner.New(rcfg)
	if err != nil {
		return err
	}

	runErr := fn(ctx, r)

	if pc, ok := collector.(*metrics.PrometheusCollector); ok {
		if err := pc.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("Could not write metrics: %v", err)
		}
	}
	return runErr
}

// buildResolver chains the configured license files, then the catalog.
func buildResolver(cfg *Config) (licenses.Resolver, func(), error) {
	var chain licenses.Chain
	for _, path := range cfg.Licenses {
		chain = append(chain, licenses.NewFileResolver(path))
	}

	closeFn := func() {}
	if cfg.LicenseCatalog != "" {
		cat, err := licenses.OpenCatalog(cfg.LicenseCatalog)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, cat)
		closeFn = func() { _ = cat.Close() }
	}

	if len(chain) == 0 {
		return nil, nil, errors.E(errors.KindInvalidInput, "depaudit", "no license source configured, use --licenses or --license-catalog")
	}
	return chain, closeFn, nil
}

func buildMetrics(cfg *Config, p *project.Project) (metrics.Collector, error) {
	if cfg.MetricsFile == "" {
		return &metrics.NopCollector{}, nil
	}
	if dir := filepath.Dir(cfg.MetricsFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.E(errors.KindInvalidInput, "depaudit", "create metrics directory", err)
		}
	}
	return metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
		ConstLabels: map[string]string{"project": p.ModuleID()},
	})
}

func importCatalog(ctx context.Context, path string, files []string, logger core.Logger) error {
	cat, err := licenses.OpenCatalog(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	for _, file := range files {
		doc, err := licenses.ReadDocument(file)
		if err != nil {
			return err
		}
		n, err := cat.Import(ctx, doc.Components)
		if err != nil {
			return err
		}
		logger.Info("Imported %d components from %s", n, file)
	}
	return nil
}
