// cmd/engine/config.go
// YAML config loading for the example binary. This is explicitly the
// "external loader" the engine itself excludes: the engine package
// only ever consumes a parsed internal/config.Config, never a file
// path. Grounded on the teacher's config/shards.go yaml.Unmarshal
// loader shape.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bbofeed/internal/config"
)

type fileConfig struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		MaxAge int    `yaml:"max_age"`
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	CloudWatch struct {
		Enabled   bool   `yaml:"enabled"`
		Region    string `yaml:"region"`
		Namespace string `yaml:"namespace"`
	} `yaml:"cloudwatch"`
	Spot map[string][]string `yaml:"spot"`
	Perp map[string][]string `yaml:"perp"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &fc, nil
}

func (fc *fileConfig) engineConfig() config.Config {
	return config.Config{Spot: fc.Spot, Perp: fc.Perp}
}
