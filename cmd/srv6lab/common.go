package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"srv6lab/internal/config"
	"srv6lab/internal/emulation"
	"srv6lab/internal/logging"
	"srv6lab/internal/topology"
)

const containerPrefix = "srv6lab-"

// loadConfig layers command line flags over the file and environment
// configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dotenv, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, dotenv)
	if err != nil {
		return config.Config{}, err
	}

	if topo, _ := cmd.Flags().GetString("topology"); topo != "" {
		cfg.Topology = topo
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	return logger
}

// buildGraph declares the configured topology, or the tutorial network when
// none is configured.
func buildGraph(cfg config.Config) (*topology.Graph, topology.Diagnostics, error) {
	b := topology.NewBuilder(cfg.BuilderOptions())

	if cfg.Topology == "" {
		if err := topology.DeclareTutorial(b); err != nil {
			return nil, nil, fmt.Errorf("declare tutorial: %w", err)
		}
	} else if err := topology.LoadFile(cfg.Topology, b); err != nil {
		return nil, nil, err
	}

	return b.Build()
}

func newEngine(cfg config.Config, logger *slog.Logger) (*emulation.LinuxEngine, error) {
	store, err := emulation.NewStore(cfg.HandlesDir())
	if err != nil {
		return nil, err
	}

	docker, err := emulation.NewDockerClient()
	if err != nil {
		return nil, err
	}
	atexit.Register(func() { docker.Close() })

	stratum := &emulation.StratumDevice{
		Docker:       docker,
		Image:        cfg.StratumImage,
		GRPCBasePort: cfg.GRPCBasePort,
		StateDir:     cfg.StratumDir(),
		Prefix:       containerPrefix + cfg.NetNSPrefix,
		Logger:       logger,
	}

	return emulation.NewEngine(emulation.EngineConfig{
		Devices: emulation.DefaultDevices(cfg.NetNSPrefix, stratum),
		Store:   store,
		Logger:  logger,
	}), nil
}
