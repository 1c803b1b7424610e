package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats understood by the status parser.
const (
	FormatDelimited = "delimited"
	FormatColumn    = "column"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Queue  QueueConfig  `yaml:"queue"`
	Status StatusConfig `yaml:"status"`
}

type ServerConfig struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths. Both fields must be set to enable TLS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled returns true if both cert and key files are configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

type QueueConfig struct {
	MaxLength int `yaml:"max_queue_length"`
}

// StatusConfig describes the external status command and the shape of its output.
type StatusConfig struct {
	Shell      string `yaml:"shell"`
	Command    string `yaml:"command"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Format     string `yaml:"format"`
	Delimiter  string `yaml:"delimiter"`
	Column     int    `yaml:"column"`
}

// Timeout returns the bounded wait applied to a single status invocation.
func (s StatusConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Queue: QueueConfig{
			MaxLength: 100,
		},
		Status: StatusConfig{
			Shell:      "sh",
			Command:    "passenger-status | grep 'Requests in top-level queue'",
			TimeoutSec: 5,
			Format:     FormatDelimited,
			Delimiter:  ":",
			Column:     1,
		},
	}
}

// Load reads config from the given path, falling back to default locations.
// Environment variables override YAML values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	paths := []string{path}
	if path == "" {
		paths = []string{
			"./queue-probe.yaml",
			filepath.Join(homeDir(), ".config", "queue-probe", "config.yaml"),
		}
	}

	var loaded bool
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", p, err)
		}
		loaded = true
		break
	}

	if !loaded && path != "" {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize canonicalises values that may come from either YAML or env.
func (c *Config) normalize() {
	c.Status.Format = strings.ToLower(strings.TrimSpace(c.Status.Format))
}

func applyEnvOverrides(cfg *Config) error {
	if v := lookupEnv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if v := lookupEnv("SERVER_TLS_CERT_FILE"); v != "" {
		cfg.Server.TLS.CertFile = v
	}
	if v := lookupEnv("SERVER_TLS_KEY_FILE"); v != "" {
		cfg.Server.TLS.KeyFile = v
	}
	if err := envInt("MAX_QUEUE_LENGTH", &cfg.Queue.MaxLength); err != nil {
		return err
	}
	if v := lookupEnv("STATUS_SHELL"); v != "" {
		cfg.Status.Shell = v
	}
	if v := lookupEnv("STATUS_COMMAND"); v != "" {
		cfg.Status.Command = v
	}
	if err := envInt("STATUS_TIMEOUT_SEC", &cfg.Status.TimeoutSec); err != nil {
		return err
	}
	if v := lookupEnv("STATUS_FORMAT"); v != "" {
		cfg.Status.Format = v
	}
	if v := lookupEnv("STATUS_DELIMITER"); v != "" {
		cfg.Status.Delimiter = v
	}
	if err := envInt("STATUS_COLUMN", &cfg.Status.Column); err != nil {
		return err
	}
	return nil
}

// lookupEnv returns APP_<key> if set, else <key>.
func lookupEnv(key string) string {
	if v := os.Getenv("APP_" + key); v != "" {
		return v
	}
	return os.Getenv(key)
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(lookupEnv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// Addr returns the listen address string.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func homeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// Validate checks the loaded configuration. Any error here is fatal at startup.
func (c *Config) Validate() error {
	if c.Queue.MaxLength < 0 {
		return fmt.Errorf("queue.max_queue_length must not be negative, got %d", c.Queue.MaxLength)
	}

	// Port range
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	var missing []string
	if strings.TrimSpace(c.Status.Shell) == "" {
		missing = append(missing, "status.shell")
	}
	if strings.TrimSpace(c.Status.Command) == "" {
		missing = append(missing, "status.command")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Status.TimeoutSec <= 0 {
		return fmt.Errorf("status.timeout_sec must be positive, got %d", c.Status.TimeoutSec)
	}

	switch c.Status.Format {
	case FormatDelimited:
		if c.Status.Delimiter == "" {
			return fmt.Errorf("status.delimiter must be set for format %q", FormatDelimited)
		}
	case FormatColumn:
		if c.Status.Column < 0 {
			return fmt.Errorf("status.column must not be negative, got %d", c.Status.Column)
		}
	default:
		return fmt.Errorf("status.format must be %q or %q, got %q", FormatDelimited, FormatColumn, c.Status.Format)
	}

	// TLS: both or neither
	tls := c.Server.TLS
	if (tls.CertFile == "") != (tls.KeyFile == "") {
		return fmt.Errorf("tls: both cert_file and key_file must be set, or neither")
	}
	if tls.Enabled() {
		if _, err := os.Stat(tls.CertFile); err != nil {
			return fmt.Errorf("tls cert_file not readable: %w", err)
		}
		if _, err := os.Stat(tls.KeyFile); err != nil {
			return fmt.Errorf("tls key_file not readable: %w", err)
		}
	}

	return nil
}
