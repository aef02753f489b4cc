package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/spectral"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend     string  `yaml:"backend"`
	Amount      float64 `yaml:"amount"`
	Sensitivity float64 `yaml:"sensitivity"`
	Tone        float64 `yaml:"tone"`
	WindowSize  int     `yaml:"window"`
	HopSize     int     `yaml:"hop"`
	Hint        string  `yaml:"hint"`
	FVADMode    int     `yaml:"fvad_mode"`

	// Spectral overrides the tuning of the spectral backends; omitted
	// fields keep the backend defaults.
	Spectral yaml.Node `yaml:"spectral"`
}

func DefaultConfig() Config {
	return Config{
		Backend:     spectral.Name,
		Amount:      1,
		Sensitivity: 0.3,
		Tone:        0.5,
		Hint:        hintEnvelope,
		FVADMode:    2,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}

// SpectralParams returns the tuning for the given spectral backend with
// the overrides applied.
func (cfg Config) SpectralParams(backend string) (spectral.Params, error) {
	params := spectral.DefaultParams()
	if backend == spectral.ReverbReductionName {
		params = spectral.ReverbReductionParams()
	}
	if cfg.Spectral.IsZero() {
		return params, nil
	}
	if err := cfg.Spectral.Decode(&params); err != nil {
		return params, fmt.Errorf("unable to parse the spectral tuning: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("invalid spectral tuning: %w", err)
	}
	return params, nil
}
