// Package config loads process configuration from an optional YAML file, an
// optional .env file and SRV6LAB_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"srv6lab/internal/topology"
)

const (
	DefaultStateDir     = "/var/lib/srv6lab"
	DefaultStratumImage = "opennetworking/mn-stratum:latest"
	DefaultGRPCBasePort = 50001
	EnvPrefix           = "SRV6LAB_"
)

var validate = validator.New()

// Controller describes the remote ONOS instance switches are attached to.
type Controller struct {
	Name     string `yaml:"name" validate:"required"`
	Address  string `yaml:"address" validate:"required,ip"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Pipeconf string `yaml:"pipeconf" validate:"required"`
	Driver   string `yaml:"driver" validate:"required"`
	// AgentHost is the address the controller dials to reach switch agents.
	AgentHost string `yaml:"agent_host" validate:"omitempty,ip|hostname"`
	// Push uploads the generated netcfg to the controller REST API.
	Push bool `yaml:"push"`
}

type Config struct {
	DefaultCPUPort int    `yaml:"default_cpu_port" validate:"min=1,max=511"`
	Isolation      string `yaml:"isolation" validate:"oneof=warn error"`
	StateDir       string `yaml:"state_dir" validate:"required"`
	NetNSPrefix    string `yaml:"netns_prefix"`
	StratumImage   string `yaml:"stratum_image" validate:"required"`
	GRPCBasePort   int    `yaml:"grpc_base_port" validate:"min=1,max=65535"`
	// NetcfgPath defaults to netcfg.json inside StateDir.
	NetcfgPath  string     `yaml:"netcfg_path"`
	Topology    string     `yaml:"topology"`
	LogLevel    string     `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr string     `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Controller  Controller `yaml:"controller"`
}

func Default() Config {
	return Config{
		DefaultCPUPort: topology.DefaultCPUPort,
		Isolation:      string(topology.IsolationWarn),
		StateDir:       DefaultStateDir,
		StratumImage:   DefaultStratumImage,
		GRPCBasePort:   DefaultGRPCBasePort,
		LogLevel:       "info",
		Controller: Controller{
			Name:     "c0",
			Address:  "127.0.0.1",
			Port:     8181,
			User:     "onos",
			Password: "rocks",
			Pipeconf: "org.onosproject.srv6-usid",
			Driver:   "stratum-bmv2",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing dotenv file is ignored.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env, err := readDotEnv(dotenv)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	env, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dotenv %s: %w", path, err)
	}
	return env, nil
}

// ApplyEnv overrides fields from SRV6LAB_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ISOLATION":             &c.Isolation,
		"STATE_DIR":             &c.StateDir,
		"NETNS_PREFIX":          &c.NetNSPrefix,
		"STRATUM_IMAGE":         &c.StratumImage,
		"NETCFG":                &c.NetcfgPath,
		"TOPOLOGY":              &c.Topology,
		"LOG_LEVEL":             &c.LogLevel,
		"METRICS_ADDR":          &c.MetricsAddr,
		"CONTROLLER_NAME":       &c.Controller.Name,
		"CONTROLLER_ADDR":       &c.Controller.Address,
		"CONTROLLER_USER":       &c.Controller.User,
		"CONTROLLER_PASSWORD":   &c.Controller.Password,
		"PIPECONF":              &c.Controller.Pipeconf,
		"CONTROLLER_DRIVER":     &c.Controller.Driver,
		"CONTROLLER_AGENT_HOST": &c.Controller.AgentHost,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CPU_PORT":        &c.DefaultCPUPort,
		"GRPC_BASE_PORT":  &c.GRPCBasePort,
		"CONTROLLER_PORT": &c.Controller.Port,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "CONTROLLER_PUSH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCONTROLLER_PUSH: %w", EnvPrefix, err)
		}
		c.Controller.Push = b
	}

	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (got %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Netcfg returns the path the controller netcfg is written to.
func (c Config) Netcfg() string {
	if c.NetcfgPath != "" {
		return c.NetcfgPath
	}
	return filepath.Join(c.StateDir, "netcfg.json")
}

// HandlesDir is where runtime handles are persisted.
func (c Config) HandlesDir() string {
	return filepath.Join(c.StateDir, "handles")
}

func (c Config) BuilderOptions() topology.Options {
	return topology.Options{
		DefaultCPUPort: c.DefaultCPUPort,
		Isolation:      topology.IsolationPolicy(c.Isolation),
	}
}

// StratumDir holds the generated per-switch agent configuration.
func (c Config) StratumDir() string {
	return filepath.Join(c.StateDir, "stratum")
}
