package ratelimit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape for deployment configuration: the action
// table plus the cascade map.
//
//	limits:
//	  - action: pack_purchase
//	    max_requests: 10
//	    window_seconds: 86400
//	    strategy: sliding_window
//	    adaptive: true
//	    cascading: true
//	cascades:
//	  pack_purchase: [payment]
type FileConfig struct {
	Limits   []LimitSpec         `yaml:"limits"`
	Cascades map[string][]string `yaml:"cascades"`
}

// LimitSpec is one action's entry in the config file.
type LimitSpec struct {
	Action        string `yaml:"action"`
	MaxRequests   int    `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	Strategy      string `yaml:"strategy"`
	Adaptive      bool   `yaml:"adaptive,omitempty"`
	Cascading     bool   `yaml:"cascading,omitempty"`
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML deployment configuration.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := fc.Configs(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Configs converts the file entries into validated engine configs.
func (fc *FileConfig) Configs() ([]Config, error) {
	out := make([]Config, 0, len(fc.Limits))
	for _, spec := range fc.Limits {
		strat, err := ParseStrategy(spec.Strategy)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", spec.Action, err)
		}
		cfg := Config{
			Action:        spec.Action,
			MaxRequests:   spec.MaxRequests,
			WindowSeconds: spec.WindowSeconds,
			Strategy:      strat,
			Adaptive:      spec.Adaptive,
			Cascading:     spec.Cascading,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Options turns the file configuration into limiter options.
func (fc *FileConfig) Options() ([]Option, error) {
	cfgs, err := fc.Configs()
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLimits(cfgs...)}
	if len(fc.Cascades) > 0 {
		opts = append(opts, WithCascades(fc.Cascades))
	}
	return opts, nil
}
