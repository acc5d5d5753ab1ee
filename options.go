package loom

import (
	"time"
)

// Options is the build configuration surface.
type Options struct {
	// ParallelStartup builds independent branches of the context graph
	// concurrently.
	ParallelStartup bool `yaml:"parallel_startup"`
	// StartupTimeout bounds the whole build. Zero disables the bound.
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	// ContextTimeout bounds a single context's initialize/start phase.
	// Zero disables the bound.
	ContextTimeout time.Duration `yaml:"context_timeout"`
	// MaxParallelBuilds caps concurrent context builds when
	// ParallelStartup is set.
	MaxParallelBuilds int `yaml:"max_parallel_builds"`
	// FailFast cancels in-flight sibling builds as soon as one context
	// fails. When false, the current level finishes and failures are
	// reported in aggregate.
	FailFast bool `yaml:"fail_fast"`
}

// DefaultOptions returns the default build configuration.
func DefaultOptions() Options {
	return Options{
		ParallelStartup:   true,
		StartupTimeout:    30 * time.Second,
		ContextTimeout:    10 * time.Second,
		MaxParallelBuilds: 4,
		FailFast:          true,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxParallelBuilds <= 0 {
		o.MaxParallelBuilds = DefaultOptions().MaxParallelBuilds
	}
	return o
}
