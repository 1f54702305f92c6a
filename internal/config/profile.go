package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChartProfile is the optional YAML file describing the chart state to
// apply on startup.
type ChartProfile struct {
	Symbol  string   `yaml:"symbol"`
	Theme   string   `yaml:"theme"`
	Studies []string `yaml:"studies"`
}

// LoadProfile reads and validates a chart profile. Returns an
// os.ErrNotExist-wrapped error if the file is absent; callers skip the
// profile in that case.
func LoadProfile(path string) (*ChartProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chart profile: %w", err)
	}
	var p ChartProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("chart profile: %w", err)
	}
	switch p.Theme {
	case "", "day", "night", "none":
	default:
		return nil, fmt.Errorf("chart profile: unknown theme %q", p.Theme)
	}
	for i, s := range p.Studies {
		if s == "" {
			return nil, fmt.Errorf("chart profile: studies[%d] is empty", i)
		}
	}
	return &p, nil
}
