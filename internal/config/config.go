// Package config loads pedigree.yaml / pedigree.toml and resolves secrets
// from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files looked up by Find, in order.
var FileNames = []string{"pedigree.yaml", "pedigree.yml", "pedigree.toml"}

// Config is the on-disk configuration. Every field is optional; command
// line flags take precedence.
type Config struct {
	Version    int    `yaml:"version" toml:"version"`
	Adapter    string `yaml:"adapter" toml:"adapter"`
	URI        string `yaml:"uri" toml:"uri"`
	Key        string `yaml:"key" toml:"key"`
	Versioning *bool  `yaml:"versioning" toml:"versioning"`
	SystemDir  string `yaml:"system_dir" toml:"system_dir"`
	ReadOnly   bool   `yaml:"read_only" toml:"read_only"`
	Patient    string `yaml:"patient" toml:"patient"`
	Snapshots  *bool  `yaml:"snapshots" toml:"snapshots"`

	Server struct {
		Addr      string `yaml:"addr" toml:"addr"`
		ViewToken string `yaml:"view_token" toml:"view_token"`
		EditToken string `yaml:"edit_token" toml:"edit_token"`
	} `yaml:"server" toml:"server"`

	MQTT struct {
		URL   string `yaml:"url" toml:"url"`
		Topic string `yaml:"topic" toml:"topic"`
	} `yaml:"mqtt" toml:"mqtt"`

	SQL struct {
		DSN string `yaml:"dsn" toml:"dsn"`
	} `yaml:"sql" toml:"sql"`

	S3 struct {
		Bucket    string `yaml:"bucket" toml:"bucket"`
		Prefix    string `yaml:"prefix" toml:"prefix"`
		Region    string `yaml:"region" toml:"region"`
		Endpoint  string `yaml:"endpoint" toml:"endpoint"`
		PathStyle bool   `yaml:"path_style" toml:"path_style"`
	} `yaml:"s3" toml:"s3"`

	Redis struct {
		URL string `yaml:"url" toml:"url"`
	} `yaml:"redis" toml:"redis"`

	REST struct {
		BaseURL string `yaml:"base_url" toml:"base_url"`
		Token   string `yaml:"token" toml:"token"`
	} `yaml:"rest" toml:"rest"`
}

// Load reads a config file. The format follows the extension.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}

	if cfg.Version > 1 {
		return nil, fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find returns the first config file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadDir loads the config found in dir. A directory without one yields an
// empty config.
func LoadDir(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return &Config{}, nil
	}
	return Load(path)
}

// resolveSecrets fills tokens left empty in the file from the environment.
func (c *Config) resolveSecrets() error {
	secrets := []struct {
		env    string
		target *string
	}{
		{"PEDIGREE_VIEW_TOKEN", &c.Server.ViewToken},
		{"PEDIGREE_EDIT_TOKEN", &c.Server.EditToken},
		{"PEDIGREE_REST_TOKEN", &c.REST.Token},
		{"PEDIGREE_SQL_DSN", &c.SQL.DSN},
	}
	for _, s := range secrets {
		if *s.target != "" {
			continue
		}
		v, err := ResolveSecret(s.env)
		if err != nil {
			return err
		}
		*s.target = v
	}
	return nil
}
