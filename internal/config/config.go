package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Every field has a usable
// default so the config file is optional.
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Auth struct {
		SessionHours int `yaml:"session_hours"`

		Bootstrap struct {
			Username   string `yaml:"username"`
			Password   string `yaml:"password"`
			Name       string `yaml:"name"`
			Department string `yaml:"department"`
		} `yaml:"bootstrap"`
	} `yaml:"auth"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "GTN-ContractReview"
	cfg.App.Port = 5000
	cfg.Database.Path = "contract_review.db"
	cfg.Auth.SessionHours = 24
	cfg.Auth.Bootstrap.Username = "admin"
	cfg.Auth.Bootstrap.Password = "admin"
	cfg.Auth.Bootstrap.Name = "IT Administrator"
	cfg.Auth.Bootstrap.Department = "it"
	return cfg
}

// Load reads a YAML config file over the defaults. A missing path is not
// an error; a present but unreadable or malformed file is.
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
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.App.Port <= 0 {
		cfg.App.Port = 5000
	}
	if cfg.Auth.SessionHours <= 0 {
		cfg.Auth.SessionHours = 24
	}
	return cfg, nil
}
