package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file looked up in the working directory
const FileName = "community-explorer.toml"

// EnvPrefix prefixes environment overrides (e.g., COMMUNITY_EXPLORER_API_BASE)
const EnvPrefix = "COMMUNITY_EXPLORER_"

// Config holds all configuration for the application
type Config struct {
	APIBase          string        `koanf:"api_base" validate:"required,url"`
	Port             int           `koanf:"port" validate:"min=0,max=65535"`
	OpenBrowser      bool          `koanf:"open"`
	Headless         bool          `koanf:"headless"`
	Graph            string        `koanf:"graph" validate:"required_if=Headless true"`
	Algorithm        string        `koanf:"algorithm" validate:"oneof=label_propagation modularity_exact clique_percolation louvain_baseline"`
	Runs             int           `koanf:"runs" validate:"min=1,max=100"`
	Inbox            string        `koanf:"inbox"`
	Timeout          time.Duration `koanf:"timeout" validate:"min=0"`
	LayoutIterations int           `koanf:"layout_iterations" validate:"min=1,max=10000"`
	Verbosity        string        `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn error"`
	VerboseCnt       int           `koanf:"verbose"`
	JSONLogs         bool          `koanf:"json_logs"`
}

var validate = validator.New()

// Defaults returns the built-in configuration values
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"api_base":          "http://localhost:5000/api",
		"port":              8080,
		"open":              true,
		"headless":          false,
		"graph":             "",
		"algorithm":         "label_propagation",
		"runs":              1,
		"inbox":             "",
		"timeout":           "0s",
		"layout_iterations": 60,
		"verbosity":         "",
		"verbose":           0,
		"json_logs":         false,
	}
}

// RegisterFlags declares the command-line flags that Load understands
func RegisterFlags(f *pflag.FlagSet) {
	f.String("api_base", "http://localhost:5000/api", "Base URL of the community detection backend")
	f.IntP("port", "p", 8080, "Port for the local UI server")
	f.Bool("open", true, "Open the browser once the UI server is up")
	f.Bool("headless", false, "Run one analysis from the command line and print a report")
	f.StringP("graph", "g", "", "Dataset id to load at startup (required with --headless)")
	f.StringP("algorithm", "a", "label_propagation", "Detection algorithm")
	f.Int("runs", 1, "Number of analysis runs in headless mode")
	f.String("inbox", "", "Directory watched for graph files to upload")
	f.Duration("timeout", 0, "Per-request backend timeout (0 waits indefinitely)")
	f.Int("layout_iterations", 60, "Force-directed layout iterations per pass")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	f.Bool("json_logs", false, "Emit JSON log lines")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional); a missing file is not an error
	_ = k.Load(file.Provider(path), toml.Parser())

	// 3. Environment variables. Keys are flat, so underscores are kept.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set override lower layers)
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HealthURL derives the backend health endpoint, which lives beside /api rather than under it
func (c *Config) HealthURL() string {
	base := strings.TrimRight(c.APIBase, "/")
	return strings.TrimSuffix(base, "/api") + "/health"
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
