// Package main is the entry point for the avsanitize command.
//
// In its default mode the command reads a JSON record from stdin, runs
// it through the rules in the configuration file, and writes the
// sanitized record to stdout. With -serve it exposes the engine over
// HTTP and hot-reloads rules when the configuration file changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avsanitize/internal/config"
	"github.com/vyrodovalexey/avsanitize/internal/container"
	"github.com/vyrodovalexey/avsanitize/internal/filters"
	"github.com/vyrodovalexey/avsanitize/internal/observability"
	"github.com/vyrodovalexey/avsanitize/internal/registry"
	"github.com/vyrodovalexey/avsanitize/internal/sanitize"
	"github.com/vyrodovalexey/avsanitize/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(flags, cfg)
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	engine := buildEngine(logger)

	if flags.serve {
		if err := runServe(engine, cfg, flags.configPath, logger); err != nil {
			logger.Error("server exited with error", observability.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := runOnce(engine, cfg); err != nil {
		logger.Error("sanitize failed", observability.Error(err))
		os.Exit(1)
	}
}

// initLogger builds the logger from flags, falling back to config values.
func initLogger(flags cliFlags, cfg *config.Config) observability.Logger {
	logCfg := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// buildEngine wires the registry, container, built-in filters and engine.
func buildEngine(logger observability.Logger) *sanitize.Engine {
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithContainer(container.New()),
	)
	filters.Register(reg)

	return sanitize.New(reg, sanitize.WithLogger(logger))
}

// runOnce sanitizes a single JSON record from stdin.
func runOnce(engine *sanitize.Engine, cfg *config.Config) error {
	var record map[string]interface{}
	if err := json.NewDecoder(os.Stdin).Decode(&record); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	rules := make(sanitize.Ruleset, len(cfg.Rules))
	for path, pipeline := range cfg.Rules {
		rules[path] = pipeline
	}

	record, err := engine.Sanitize(context.Background(), rules, record)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}

// runServe runs the HTTP service with rule hot-reload until interrupted.
func runServe(engine *sanitize.Engine, cfg *config.Config, configPath string, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "avsanitize",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", observability.Error(err))
		}
	}()

	srv := server.New(engine, cfg, logger)

	watcher, err := config.NewWatcher(configPath,
		func(updated *config.Config) { srv.SetRules(updated.Rules) },
		config.WithWatcherLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	return srv.Run(ctx)
}

// printVersion prints build information.
func printVersion() {
	fmt.Printf("avsanitize %s (commit %s, built %s)\n", version, gitCommit, buildTime)
}
