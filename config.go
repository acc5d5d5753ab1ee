package loom

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomdi/loom/errors"
)

// LoadOptions reads build options from a YAML file. Unset fields fall back
// to DefaultOptions.
//
//	parallel_startup: true
//	startup_timeout: 30s
//	context_timeout: 10s
//	max_parallel_builds: 4
//	fail_fast: true
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.ErrInvalidDefinition("options file", err)
	}
	return ParseOptions(data)
}

// rawOptions carries durations as strings so "30s" style values decode.
type rawOptions struct {
	ParallelStartup   *bool  `yaml:"parallel_startup"`
	StartupTimeout    string `yaml:"startup_timeout"`
	ContextTimeout    string `yaml:"context_timeout"`
	MaxParallelBuilds *int   `yaml:"max_parallel_builds"`
	FailFast          *bool  `yaml:"fail_fast"`
}

// ParseOptions decodes build options from YAML bytes.
func ParseOptions(data []byte) (Options, error) {
	var raw rawOptions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, errors.ErrInvalidDefinition("options", err)
	}

	opts := DefaultOptions()
	if raw.ParallelStartup != nil {
		opts.ParallelStartup = *raw.ParallelStartup
	}
	if raw.FailFast != nil {
		opts.FailFast = *raw.FailFast
	}
	if raw.MaxParallelBuilds != nil {
		opts.MaxParallelBuilds = *raw.MaxParallelBuilds
	}
	if raw.StartupTimeout != "" {
		d, err := time.ParseDuration(raw.StartupTimeout)
		if err != nil {
			return Options{}, errors.ErrInvalidDefinition("startup_timeout", err)
		}
		opts.StartupTimeout = d
	}
	if raw.ContextTimeout != "" {
		d, err := time.ParseDuration(raw.ContextTimeout)
		if err != nil {
			return Options{}, errors.ErrInvalidDefinition("context_timeout", err)
		}
		opts.ContextTimeout = d
	}
	return opts.withDefaults(), nil
}
