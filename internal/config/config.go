package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models workobs.yml.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		BasePath    string   `yaml:"base_path"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
}

// Default returns the built-in configuration. The CORS origins are the
// local Vite dev hosts the frontend runs on.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = "127.0.0.1:8787"
	cfg.Server.BasePath = "/api"
	cfg.Server.CORSOrigins = []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	}
	cfg.Export.Dir = "logs-md"
	return cfg
}

// Load reads config from path, falling back to defaults when the file is
// absent. Env overrides are bound by the CLI, not here.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("config.export.dir is required")
	}
	return nil
}
