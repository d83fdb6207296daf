package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
	"github.com/tayjaybabee/jet-bridge/pkg/jetbridge"
)

// defaultConnection names the connection built from --database-url or
// DATABASE_URL.
const defaultConnection = "default"

// Config represents the jetbridge.yaml configuration file.
type Config struct {
	Connections    []ConnectionConfig `yaml:"connections"`
	OverlayFile    string             `yaml:"overlay_file"`
	Workers        int                `yaml:"workers"`
	Listen         string             `yaml:"listen"`
	ReflectTimeout time.Duration      `yaml:"reflect_timeout"`
}

// ConnectionConfig is one entry of the connections list.
type ConnectionConfig struct {
	Name        string   `yaml:"name"`
	Project     string   `yaml:"project"`
	Token       string   `yaml:"token"`
	DatabaseURL string   `yaml:"database_url"`
	Driver      string   `yaml:"driver"`
	Only        []string `yaml:"only"`
	Views       bool     `yaml:"views"`
}

// Key returns the registry key of the connection.
func (c ConnectionConfig) Key() registry.Key {
	return registry.Key{Name: c.Name, Project: c.Project, Token: c.Token}
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Workers: 4,
		Listen:  ":8080",
	}

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to parse config file").
				With("path", configFile)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read config file").
			With("path", configFile)
	}

	for i := range cfg.Connections {
		c := &cfg.Connections[i]
		c.DatabaseURL = expandEnvVars(c.DatabaseURL)
		c.Token = expandEnvVars(c.Token)
		if c.Name == "" {
			return nil, alerr.New(alerr.ErrConfigInvalid, "connection without a name").
				With("index", i)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

// applyEnv overrides the file with JETBRIDGE_* and DATABASE_URL.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		setDefaultURL(cfg, v)
	}
	if v := os.Getenv("JETBRIDGE_OVERLAY_FILE"); v != "" {
		cfg.OverlayFile = v
	}
	if v := os.Getenv("JETBRIDGE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("JETBRIDGE_WORKERS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return alerr.Wrap(alerr.ErrConfigInvalid, err, "invalid JETBRIDGE_WORKERS").With("value", v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("JETBRIDGE_REFLECT_TIMEOUT"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return alerr.Wrap(alerr.ErrConfigInvalid, err, "invalid JETBRIDGE_REFLECT_TIMEOUT").With("value", v)
		}
		cfg.ReflectTimeout = d
	}
	return nil
}

// applyFlags overrides everything with explicitly set flags.
func applyFlags(cfg *Config) {
	if databaseURL != "" {
		setDefaultURL(cfg, databaseURL)
	}
	if driver != "" {
		for i := range cfg.Connections {
			cfg.Connections[i].Driver = driver
		}
	}
	if overlayFile != "" {
		cfg.OverlayFile = overlayFile
	}
}

// setDefaultURL points the default connection at url, adding it when the
// file does not define one.
func setDefaultURL(cfg *Config, url string) {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == defaultConnection {
			cfg.Connections[i].DatabaseURL = url
			return
		}
	}
	cfg.Connections = append(cfg.Connections, ConnectionConfig{Name: defaultConnection, DatabaseURL: url})
}

// expandEnvVars expands ${VAR} patterns in a string.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// selectConnections returns the named connections, or all of them when
// names is empty.
func (c *Config) selectConnections(names []string) ([]ConnectionConfig, error) {
	if len(c.Connections) == 0 {
		return nil, jetbridge.ErrMissingDatabaseURL
	}
	if len(names) == 0 {
		return c.Connections, nil
	}

	byName := make(map[string]ConnectionConfig, len(c.Connections))
	known := make([]string, 0, len(c.Connections))
	for _, conn := range c.Connections {
		byName[conn.Name] = conn
		known = append(known, conn.Name)
	}

	out := make([]ConnectionConfig, 0, len(names))
	for _, name := range names {
		conn, ok := byName[name]
		if !ok {
			return nil, alerr.New(alerr.ErrConfigInvalid, fmt.Sprintf("unknown connection %q", name)).
				WithHint(alerr.SuggestSimilar([]string{name}, known))
		}
		out = append(out, conn)
	}
	return out, nil
}

// newClient creates a jetbridge client from config.
func newClient(cfg *Config, opts ...jetbridge.Option) (*jetbridge.Client, error) {
	opts = append([]jetbridge.Option{
		jetbridge.WithWorkers(cfg.Workers),
		jetbridge.WithReflectTimeout(cfg.ReflectTimeout),
		jetbridge.WithLogger(logger),
	}, opts...)
	if cfg.OverlayFile != "" {
		opts = append(opts, jetbridge.WithOverlayFile(cfg.OverlayFile))
	}
	return jetbridge.New(opts...)
}

// connectionConfig converts a file entry into a client connection.
func (c ConnectionConfig) connectionConfig() jetbridge.ConnectionConfig {
	return jetbridge.ConnectionConfig{
		Key:         c.Key(),
		DatabaseURL: c.DatabaseURL,
		Driver:      c.Driver,
		Only:        c.Only,
		Views:       c.Views,
	}
}
