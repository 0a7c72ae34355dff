package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type Config struct {
	PipelinePath string // YAML or JSON file describing the device chain
	WSAddr       string
	TickInterval time.Duration
	LogDir       string
	LogLevel     string
}

// Load parses the process flags, exiting on bad input the way flag does
func Load() *Config {
	cfg, err := LoadArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// LoadArgs parses args and applies environment overrides
func LoadArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("piezo-writer", flag.ContinueOnError)

	pipelinePath := fs.String("config", "pipeline.yaml", "Pipeline file (YAML or JSON)")
	wsAddr := fs.String("ws", ":8990", "WebSocket server address")
	tick := fs.Duration("tick", 10*time.Millisecond, "Control loop period")
	logDir := fs.String("log-dir", "logs", "Log directory")
	logLevel := fs.String("log-level", "INFO", "TRACE, DEBUG, INFO, WARN or ERROR")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Allow environment variable override
	if env := os.Getenv("PIEZO_CONFIG"); env != "" {
		*pipelinePath = env
	}
	if env := os.Getenv("PIEZO_LOG_LEVEL"); env != "" {
		*logLevel = env
	}

	if *tick <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %s", *tick)
	}

	return &Config{
		PipelinePath: *pipelinePath,
		WSAddr:       *wsAddr,
		TickInterval: *tick,
		LogDir:       *logDir,
		LogLevel:     *logLevel,
	}, nil
}
