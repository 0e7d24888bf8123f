// Package config provides YAML-based configuration loading for Signalbox.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	Project     string        `yaml:"project"`
	RulesPath   string        `yaml:"rules"`
	FixturesDir string        `yaml:"fixtures"`
	RetryLimit  int           `yaml:"retry_limit"`
	DB          DBConfig      `yaml:"db"`
	GitHub      GitHubConfig  `yaml:"github"`
	Notify      NotifyConfig  `yaml:"notify"`
	Watch       WatchConfig   `yaml:"watch"`
	Serve       ServeConfig   `yaml:"serve"`
	Suites      []SuiteConfig `yaml:"suites"`
}

// DBConfig holds storage settings. Driver is "sqlite" (default) or "mysql".
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// GitHubConfig holds settings for fetching GitHub Actions job logs.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env"` // env var holding the API token
}

// NotifyConfig selects and configures chat notifiers.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack notifier settings.
type SlackConfig struct {
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord notifier settings.
type DiscordConfig struct {
	TokenEnv  string `yaml:"token_env"`
	ChannelID string `yaml:"channel_id"`
}

// WatchConfig lists git repositories to poll for Fixes-footer commits.
type WatchConfig struct {
	WorkDir  string   `yaml:"work_dir"`
	RepoBase string   `yaml:"repo_base"` // remote URL prefix, e.g. ssh://codereview.example.org:29418/
	Repos    []string `yaml:"repos"`
	Schedule string   `yaml:"schedule"` // 5-field cron expression
}

// ServeConfig holds dashboard server settings.
type ServeConfig struct {
	Port int `yaml:"port"`
}

// SuiteConfig declares a post-build test suite and the predicate that
// gates it. When is an expression over the build profile (os, arch,
// features, modules); empty means always selected.
type SuiteConfig struct {
	Name string `yaml:"name"`
	When string `yaml:"when"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.RulesPath == "" {
		c.RulesPath = "rules.yaml"
	}
	if c.FixturesDir == "" {
		c.FixturesDir = "fixtures"
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = 3
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "signalbox.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" && c.Project != "" {
			c.DB.Database = "signalbox_" + c.Project
		}
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if c.Watch.WorkDir == "" {
		c.Watch.WorkDir = os.ExpandEnv("${HOME}/.signalbox/git_repos")
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = "*/15 * * * *"
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 8080
	}
	if len(c.Suites) == 0 {
		c.Suites = DefaultSuites()
	}
}

// DefaultSuites returns the built-in post-build suite plan. The bic,
// headers and symbols suites need subprocess support on the test host;
// bic and symbols only produce meaningful results on Linux; the GUI
// application launcher additionally needs the widgets module.
func DefaultSuites() []SuiteConfig {
	return []SuiteConfig{
		{Name: "bic", When: `"process" in features && os == "linux"`},
		{Name: "headers", When: `"process" in features`},
		{Name: "symbols", When: `"process" in features && os == "linux"`},
		{Name: "guiapplauncher", When: `"process" in features && "widgets" in modules`},
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Project == "" {
		errs = append(errs, "project is required")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite or mysql)", c.DB.Driver))
	}
	if c.DB.Driver == "mysql" && c.DB.Database == "" {
		errs = append(errs, "db.database is required for the mysql driver")
	}
	for i, s := range c.Suites {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("suites[%d].name is required", i))
		}
	}
	for i, r := range c.Watch.Repos {
		if r == "" {
			errs = append(errs, fmt.Sprintf("watch.repos[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
