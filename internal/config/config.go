package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alawein/maglogic/internal/analysis"
	"github.com/alawein/maglogic/internal/logic"
	"github.com/alawein/maglogic/internal/mag"
)

const (
	DefaultLogicThreshold  = 0.5
	DefaultDefectThreshold = analysis.DefaultDefectThreshold
	DefaultWorkers         = 4
)

type Config struct {
	Domain   DomainConfig   `yaml:"domain"`
	Topology TopologyConfig `yaml:"topology"`
	Logic    LogicConfig    `yaml:"logic"`
	Batch    BatchConfig    `yaml:"batch"`
}

type DomainConfig struct {
	// References lists classification directions as [x,y,z] triples.
	// Empty means the six axis directions.
	References [][3]float64 `yaml:"references,omitempty"`
	// Component switches to sign-threshold classification on one
	// component ("x", "y" or "z") when set.
	Component string  `yaml:"component,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

type TopologyConfig struct {
	DefectThreshold float64 `yaml:"defect_threshold"`
	// SliceMode is "sum" or "per_slice"; required for multi-layer grids.
	SliceMode string `yaml:"slice_mode,omitempty"`
}

type LogicConfig struct {
	Component string  `yaml:"component"`
	Threshold float64 `yaml:"threshold"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Topology: TopologyConfig{
			DefectThreshold: DefaultDefectThreshold,
			SliceMode:       "sum",
		},
		Logic: LogicConfig{
			Component: "x",
			Threshold: DefaultLogicThreshold,
		},
		Batch: BatchConfig{
			Workers: DefaultWorkers,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func componentIndex(name string) (int, error) {
	switch name {
	case "", "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, fmt.Errorf("config: unknown component %q (want x, y or z)", name)
}

// DomainOptions converts the yaml form into analyzer options.
func (c *Config) DomainOptions() (analysis.DomainOptions, error) {
	opts := analysis.DomainOptions{}
	if c.Domain.Component != "" {
		idx, err := componentIndex(c.Domain.Component)
		if err != nil {
			return opts, err
		}
		opts.UseComponent = true
		opts.Component = idx
		opts.Threshold = c.Domain.Threshold
		return opts, nil
	}
	for _, r := range c.Domain.References {
		opts.References = append(opts.References, mag.Vector3(r))
	}
	return opts, nil
}

// TopologyOptions converts the yaml form into analyzer options.
func (c *Config) TopologyOptions() (analysis.TopologyOptions, error) {
	opts := analysis.TopologyOptions{DefectThreshold: c.Topology.DefectThreshold}
	switch c.Topology.SliceMode {
	case "":
	case "sum":
		opts.Mode = analysis.SliceSum
	case "per_slice":
		opts.Mode = analysis.SlicePer
	default:
		return opts, fmt.Errorf("config: unknown slice_mode %q (want sum or per_slice)", c.Topology.SliceMode)
	}
	return opts, nil
}

// Classifier converts the yaml form into a logic classifier.
func (c *Config) Classifier() (logic.Classifier, error) {
	idx, err := componentIndex(c.Logic.Component)
	if err != nil {
		return logic.Classifier{}, err
	}
	threshold := c.Logic.Threshold
	if threshold == 0 {
		threshold = DefaultLogicThreshold
	}
	return logic.Classifier{Component: idx, Threshold: threshold}, nil
}
