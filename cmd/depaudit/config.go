package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/exploopio/depaudit/pkg/check"
	"github.com/exploopio/depaudit/pkg/client"
	"github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/graph"
)

const envPrefix = "DEPAUDIT_"

// Config is the CLI configuration. Values are layered: defaults, the YAML
// file, DEPAUDIT_* environment variables (a .env file is loaded first),
// then flags.
type Config struct {
	Service client.Config `yaml:"service"`

	Project struct {
		POM      string `yaml:"pom"`
		Name     string `yaml:"name"`
		Module   string `yaml:"module"`
		ModuleID string `yaml:"module_id"`
		Branch   string `yaml:"branch"`
		Tag      string `yaml:"tag"`
	} `yaml:"project"`

	Graph             string   `yaml:"graph"`
	Scope             string   `yaml:"scope"`
	Licenses          []string `yaml:"licenses"`
	LicenseCatalog    string   `yaml:"license_catalog"`
	PrivateComponents string   `yaml:"private_components"`

	Output         string `yaml:"output"`
	MetricsFile    string `yaml:"metrics_file"`
	DedupeChildren bool   `yaml:"dedupe_children"`

	Skip         bool `yaml:"skip"`
	SkipTransfer bool `yaml:"skip_transfer"`
	Verbose      bool `yaml:"verbose"`

	Check   check.Policy `yaml:"check"`
	Comment bool         `yaml:"comment"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	cfg := &Config{
		Service: *client.DefaultConfig(),
		Graph:   "dependency-graph.json",
		Scope:   graph.ScopeRuntime,
		Check:   check.DefaultPolicy(),
	}
	cfg.Project.POM = "pom.xml"
	return cfg
}

// LoadConfig builds the configuration from path (optional), the environment
// and the flags that were set on the command line.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if flags != nil {
		if err := applyFlags(cfg, flags); err != nil {
			return nil, err
		}
	}
	if cfg.Scope != "" {
		if _, err := graph.NewScopeFilter(cfg.Scope); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.E(errors.KindNotFound, "config.Load", "read config", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return errors.E(errors.KindInvalidInput, "config.Load", "parse config", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	for name, dst := range map[string]*string{
		"BASE_URL":            &cfg.Service.BaseURL,
		"API_KEY":             &cfg.Service.APIKey,
		"USER_NAME":           &cfg.Service.UserName,
		"BASIC_AUTH_USER":     &cfg.Service.BasicAuthUser,
		"BASIC_AUTH_PASSWORD": &cfg.Service.BasicAuthPassword,
	} {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
}

// registerFlags defines the flags shared by scan and check.
func registerFlags(fs *pflag.FlagSet) {
	fs.Bool("skip", false, "Skip execution")
	fs.Bool("skip-transfer", false, "Build the report without sending it")
	fs.String("scope", graph.ScopeRuntime, "Dependency scope: compile, runtime, test, provided, system, compile+runtime, runtime+system")
	fs.String("private-components", "", "';'-separated group or group:artifact patterns (default: project group)")
	fs.String("project-name", "", "Project name in the report (default: POM name)")
	fs.String("module-name", "", "Module name in the report (default: project name)")
	fs.String("module-id", "", "Module id in the report (default: group:artifact)")
	fs.String("branch", "", "Branch (default: detected from CI or .git)")
	fs.String("tag", "", "Tag (default: detected from CI or .git)")
	fs.String("pom", "pom.xml", "Project descriptor")
	fs.String("graph", "dependency-graph.json", "Resolved dependency graph (JSON or YAML)")
	fs.StringSlice("licenses", nil, "License resolution files (JSON or YAML), first match wins")
	fs.String("license-catalog", "", "SQLite license catalog")
	fs.StringP("output", "o", "", "Also write the report JSON to this file")
	fs.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.Bool("dedupe-children", false, "Collapse repeated children of a component")
	fs.String("base-url", "", "Evaluation service URL")
	fs.String("user-name", "", "User name for the evaluation service")
	fs.String("api-key", "", "API key for the evaluation service")
	fs.String("compression", "", "Request compression: zstd, gzip or none")
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		"scope":              &cfg.Scope,
		"private-components": &cfg.PrivateComponents,
		"project-name":       &cfg.Project.Name,
		"module-name":        &cfg.Project.Module,
		"module-id":          &cfg.Project.ModuleID,
		"branch":             &cfg.Project.Branch,
		"tag":                &cfg.Project.Tag,
		"pom":                &cfg.Project.POM,
		"graph":              &cfg.Graph,
		"license-catalog":    &cfg.LicenseCatalog,
		"output":             &cfg.Output,
		"metrics-file":       &cfg.MetricsFile,
		"base-url":           &cfg.Service.BaseURL,
		"user-name":          &cfg.Service.UserName,
		"api-key":            &cfg.Service.APIKey,
		"compression":        &cfg.Service.Compression,
	}
	for name, dst := range strs {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return errors.E(errors.KindInvalidInput, "config.applyFlags", name, err)
		}
		*dst = v
	}

	bools := map[string]*bool{
		"skip":            &cfg.Skip,
		"skip-transfer":   &cfg.SkipTransfer,
		"verbose":         &cfg.Verbose,
		"dedupe-children": &cfg.DedupeChildren,
		"comment":         &cfg.Comment,
	}
	for name, dst := range bools {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return errors.E(errors.KindInvalidInput, "config.applyFlags", name, err)
		}
		*dst = v
	}

	if changed(fs, "licenses") {
		v, err := fs.GetStringSlice("licenses")
		if err != nil {
			return errors.E(errors.KindInvalidInput, "config.applyFlags", "licenses", err)
		}
		cfg.Licenses = v
	}
	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// Validate checks that the service credentials are present when the report
// is going to be sent. projectID names the project in the message.
func (c *Config) Validate(projectID string, sending bool) error {
	if c.Skip || !sending {
		return nil
	}
	for _, p := range []struct{ name, env, value string }{
		{"userName", "USER_NAME", c.Service.UserName},
		{"apiKey", "API_KEY", c.Service.APIKey},
	} {
		if strings.TrimSpace(p.value) == "" {
			return errors.E(errors.KindInvalidInput, "config.Validate", fmt.Sprintf(
				"Please provide the parameter '%s' for project %s (config file, %s%s or --%s)",
				p.name, projectID, envPrefix, p.env, flagName(p.name)))
		}
	}
	return nil
}

func flagName(param string) string {
	var b strings.Builder
	for _, r := range param {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// baseDir is the directory relative project files are resolved against.
func (c *Config) baseDir() string {
	return filepath.Dir(c.Project.POM)
}
