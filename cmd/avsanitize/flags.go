package main

import (
	"flag"
	"os"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	serve       bool
	showVersion bool
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("AVSANITIZE_CONFIG_PATH", "configs/avsanitize.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", os.Getenv("AVSANITIZE_LOG_LEVEL"),
		"Log level override (debug, info, warn, error)")
	logFormat := flag.String("log-format", os.Getenv("AVSANITIZE_LOG_FORMAT"),
		"Log format override (json, console)")
	serve := flag.Bool("serve", false, "Run the HTTP sanitize service")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		serve:       *serve,
		showVersion: *showVersion,
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
