package lessons

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"activeinference/grid_world"
)

// OuterConfig is the top-level config document: a kind selector and an
// opaque definition re-parsed into the typed config.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// SimConfig holds the knobs a lesson run reads from config rather than
// code: hyper-parameters as a key/val list, the lesson selector, grid
// overrides and the optional run deadline.
type SimConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `mapstructure:"hyperParams"`
	// Lesson selects the lesson number to run.
	Lesson int `yaml:"lesson" mapstructure:"lesson"`
	// Grid optionally overrides the lesson's grid: "size", "boundary".
	Grid map[string]string `yaml:"grid" mapstructure:"grid"`
	// RunDeadline optionally bounds the run: {"duration": "2m"}.
	RunDeadline map[string]string `mapstructure:"runDeadline"`
}

// HyperParameter is one named scalar hyper-parameter.
type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// GetHyperParamOrDefault looks up a hyper-parameter by name.
func (cfg *SimConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// GridSizeOverride returns the configured grid size, or 0 when unset.
func (cfg *SimConfig) GridSizeOverride() int {
	if raw, ok := cfg.Grid["size"]; ok {
		if size, err := strconv.Atoi(raw); err == nil {
			return size
		}
	}
	return 0
}

// BoundaryOverride returns the configured boundary mode, or ok=false.
func (cfg *SimConfig) BoundaryOverride() (grid_world.BoundaryMode, bool) {
	switch cfg.Grid["boundary"] {
	case "toroidal":
		return grid_world.Toroidal, true
	case "clamped":
		return grid_world.Clamped, true
	}
	return grid_world.Clamped, false
}

// WithRunDeadline returns a context extended by the run deadline, if one
// is specified.
func (cfg *SimConfig) WithRunDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.RunDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, err
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml loads a SimConfig from a yaml file: the outer document is read
// with viper, its def re-marshaled and parsed into the typed config.
func FromYaml(path string) (*SimConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err := vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(outerConfig.Def)
	if err != nil {
		return nil, err
	}

	innerConfig := &SimConfig{}
	if err := yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}
