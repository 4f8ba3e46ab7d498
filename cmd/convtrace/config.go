package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/model"
)

// Config is the run profile (~/.config/convtrace/config.yaml or the
// --config flag): the synthetic network topology, the capture rules and
// logging defaults.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Seed      *int64 `yaml:"seed"`

	Network model.NetworkSpec `yaml:"network"`
	Capture []RuleConfig      `yaml:"capture"`
}

// RuleConfig is the yaml form of one capture rule.
type RuleConfig struct {
	Kind        string `yaml:"kind"`
	Pattern     string `yaml:"pattern"`
	Block       int    `yaml:"block"`
	Prefix      string `yaml:"prefix"`
	DebugWindow bool   `yaml:"debug_window"`
}

func (rc RuleConfig) rule() (capture.Rule, error) {
	kind, err := capture.ParseKind(rc.Kind)
	if err != nil {
		return capture.Rule{}, err
	}
	pattern, err := capture.ParsePattern(rc.Pattern)
	if err != nil {
		return capture.Rule{}, err
	}
	if rc.Prefix == "" {
		return capture.Rule{}, fmt.Errorf("capture rule for %s block %d has no prefix", rc.Kind, rc.Block)
	}
	return capture.Rule{
		Kind:        kind,
		Pattern:     pattern,
		Block:       rc.Block,
		Prefix:      rc.Prefix,
		DebugWindow: rc.DebugWindow,
	}, nil
}

func parseRules(rcs []RuleConfig) ([]capture.Rule, error) {
	rules := make([]capture.Rule, 0, len(rcs))
	for _, rc := range rcs {
		r, err := rc.rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// defaultConfig mirrors the instrumentation this tool grew out of:
// capture block 5 (counter value 4) of an 8-block network, expansion,
// projection and depthwise stages.
func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "pretty",
		Network:   model.Uniform(16, 16, 8, 8, 4, 8),
		Capture: []RuleConfig{
			{Kind: "conv", Pattern: "expansion", Block: 4, Prefix: "bn5_ex"},
			{Kind: "conv", Pattern: "projection", Block: 4, Prefix: "bn5_pr"},
			{Kind: "depthwise", Pattern: "depthwise", Block: 4, Prefix: "bn5_dw", DebugWindow: true},
		},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "convtrace", "config.yaml")
}

// loadConfig reads the profile at path, or the default location when
// path is empty. A missing file yields the built-in defaults.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath()
	}
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return Config{}, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
