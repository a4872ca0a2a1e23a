package pageturn

import (
	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

// New creates a pipeline with default configuration.
func New(raster Rasterizer, opts ...Option) (*Pipeline, error) {
	return NewFromConfig(config.DefaultConfig(), raster, opts...)
}

// NewFromConfig creates a pipeline from configuration.
func NewFromConfig(cfg *config.Config, raster Rasterizer, opts ...Option) (*Pipeline, error) {
	return newPipeline(cfg, raster, ApplyOptions(opts...))
}

// NewFromFile creates a pipeline from a JSON config file. Environment
// overrides are applied on top of the file.
func NewFromFile(path string, raster Rasterizer, opts ...Option) (*Pipeline, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, raster, opts...)
}

// ApplyOptions folds functional options into PipelineOptions.
func ApplyOptions(opts ...Option) *PipelineOptions {
	return types.ApplyOptions(opts...)
}

// Config returns a default configuration that can be modified before creating a pipeline.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
