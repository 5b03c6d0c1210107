package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// runConfig mirrors the run subcommand's flags. It is populated from flag
// values first, then overridden field-by-field by an optional --config
// file: a field set in the file wins even over a flag given explicitly on
// the command line (cobra itself has no opinion here).
type runConfig struct {
	ResultsDir                string `yaml:"results_dir"`
	MaxParallel               int    `yaml:"max_parallel"`
	ExitFirst                 bool   `yaml:"exit_first"`
	NoTeardown                bool   `yaml:"no_teardown"`
	DeflakeNum                int    `yaml:"deflake_num"`
	MinPort                   int    `yaml:"min_port"`
	MaxPort                   int    `yaml:"max_port"`
	Debug                     bool   `yaml:"debug"`
	FailBadClusterUtilization bool   `yaml:"fail_bad_cluster_utilization"`
	NumNodes                  int    `yaml:"nodes"`
	ShrinkAfter               int    `yaml:"shrink_after"`
	MetricsAddr               string `yaml:"metrics_addr"`
}

// loadConfigFile overlays cfg with any fields set in the yaml file at path.
// An empty path is a no-op so --config remains optional.
func loadConfigFile(path string, cfg *runConfig) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
