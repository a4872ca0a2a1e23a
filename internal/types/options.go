package types

// PipelineOptions holds collaborators for the render pipeline.
type PipelineOptions struct {
	// Logger is the structured logger to use.
	Logger Logger

	// Metrics is the metrics recorder.
	Metrics MetricsRecorder

	// Notifier is called when a slot gains a new tier.
	Notifier Notifier

	// Publisher receives periodic health metrics when metrics are enabled.
	// Nil selects the DataDog or logging publisher from config.
	Publisher Publisher

	// Workers overrides the number of worker goroutines from config.
	Workers int

	// DisablePlaceholder turns off the synchronous first paint render.
	DisablePlaceholder bool

	// DisableResilience disables the circuit breaker around the rasterizer.
	DisableResilience bool
}

// Option is a functional option for configuring the pipeline.
type Option func(*PipelineOptions)

// ApplyOptions applies functional options to create PipelineOptions.
func ApplyOptions(opts ...Option) *PipelineOptions {
	options := &PipelineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
