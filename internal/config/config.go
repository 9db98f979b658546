// Package config loads per-repository settings from config.yaml in the meta
// directory, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the config file's name inside the meta directory.
const FileName = "config.yaml"

// Config holds repository-wide settings.
type Config struct {
	// DefaultBranch is the branch HEAD attaches to on init.
	DefaultBranch string `yaml:"default_branch"`
	Author        Author `yaml:"author"`
	Log           Log    `yaml:"log"`
}

// Author is stamped on every commit.
type Author struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// String renders "Name <email>", or whichever half is set.
func (a Author) String() string {
	switch {
	case a.Name != "" && a.Email != "":
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	case a.Email != "":
		return "<" + a.Email + ">"
	default:
		return a.Name
	}
}

// Log configures the logging facade.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultBranch: "main",
		Log:           Log{Level: "warn", Format: "text"},
	}
}

// Load reads path, falling back to defaults for a missing file or empty
// fields, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GICLONE_AUTHOR_NAME"); v != "" {
		c.Author.Name = v
	}
	if v := os.Getenv("GICLONE_AUTHOR_EMAIL"); v != "" {
		c.Author.Email = v
	}
	if v := os.Getenv("GICLONE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
