package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServer  = "http://localhost:5000"
	DefaultTimeout = 10 * time.Second
	DefaultAddr    = ":5000"
)

type Config struct {
	// Server is the base URL of the admin API the client talks to.
	Server string `yaml:"server,omitempty"`
	// Timeout bounds each API call, e.g. "10s".
	Timeout string `yaml:"timeout,omitempty"`
	// Format is the default output format for scriptable commands (json, edn, table).
	Format string `yaml:"format,omitempty"`

	Serve ServeConfig `yaml:"serve,omitempty"`
}

type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"`
	// DB is the sqlite database path; relative paths resolve against the config dir.
	DB string `yaml:"db,omitempty"`
	// Secret signs session tokens. When empty one is generated and kept in the config dir.
	Secret   string `yaml:"secret,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Uploads UploadsConfig `yaml:"uploads,omitempty"`
}

type UploadsConfig struct {
	// Driver is fs (default), s3 or memory.
	Driver   string `yaml:"driver,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

func (c *Config) ServerURL() string {
	if s := strings.TrimSpace(c.Server); s != "" {
		return strings.TrimRight(s, "/")
	}
	return DefaultServer
}

func (c *Config) CallTimeout() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(c.Timeout)); err == nil && d > 0 {
		return d
	}
	return DefaultTimeout
}

func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.shopadmin).
	if v := strings.TrimSpace(os.Getenv("SHOPADMIN_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".shopadmin"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// SessionPath is where the scriptable commands keep the session cookie between runs.
func SessionPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// Load reads the config file; a missing file yields an empty config.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = AtomicWriteFile(dir, "config.yaml.bak.*.tmp", path+".bak", prev, 0o644)
	}
	return AtomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}

// AtomicWriteFile writes b to a temp file in dir and renames it over path.
func AtomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// keys maps dotted config keys to their fields.
var keys = map[string]func(*Config) *string{
	"server":                 func(c *Config) *string { return &c.Server },
	"timeout":                func(c *Config) *string { return &c.Timeout },
	"format":                 func(c *Config) *string { return &c.Format },
	"serve.addr":             func(c *Config) *string { return &c.Serve.Addr },
	"serve.db":               func(c *Config) *string { return &c.Serve.DB },
	"serve.secret":           func(c *Config) *string { return &c.Serve.Secret },
	"serve.logLevel":         func(c *Config) *string { return &c.Serve.LogLevel },
	"serve.uploads.driver":   func(c *Config) *string { return &c.Serve.Uploads.Driver },
	"serve.uploads.dir":      func(c *Config) *string { return &c.Serve.Uploads.Dir },
	"serve.uploads.bucket":   func(c *Config) *string { return &c.Serve.Uploads.Bucket },
	"serve.uploads.region":   func(c *Config) *string { return &c.Serve.Uploads.Region },
	"serve.uploads.endpoint": func(c *Config) *string { return &c.Serve.Uploads.Endpoint },
}

func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Config) Get(key string) (string, error) {
	f, ok := keys[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return *f(c), nil
}

// Set validates and assigns one key. An empty value unsets it.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(key)
	f, ok := keys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	value = strings.TrimSpace(value)
	if value != "" {
		switch key {
		case "timeout":
			if d, err := time.ParseDuration(value); err != nil || d <= 0 {
				return fmt.Errorf("invalid timeout %q", value)
			}
		case "format":
			switch value {
			case "json", "edn", "table":
			default:
				return fmt.Errorf("invalid format %q (expected json, edn or table)", value)
			}
		case "serve.uploads.driver":
			switch value {
			case "fs", "s3", "memory":
			default:
				return fmt.Errorf("invalid uploads driver %q (expected fs, s3 or memory)", value)
			}
		case "server":
			if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
				return fmt.Errorf("invalid server %q (expected http:// or https:// URL)", value)
			}
		}
	}
	*f(c) = value
	return nil
}

// Values returns every key with its current value, for display.
func (c *Config) Values() map[string]string {
	out := make(map[string]string, len(keys))
	for k, f := range keys {
		v := *f(c)
		if k == "serve.secret" && v != "" {
			v = "********"
		}
		out[k] = v
	}
	return out
}
