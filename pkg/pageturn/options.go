package pageturn

import (
	"github.com/LavishGent/pageturn/internal/types"
)

type (
	Option          = types.Option
	PipelineOptions = types.PipelineOptions
)

func WithLogger(logger Logger) Option {
	return func(o *PipelineOptions) {
		o.Logger = logger
	}
}

func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *PipelineOptions) {
		o.Metrics = metrics
	}
}

// WithNotifier registers fn to be told, on the control thread, whenever a
// slot gains a tier.
func WithNotifier(fn Notifier) Option {
	return func(o *PipelineOptions) {
		o.Notifier = fn
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(o *PipelineOptions) {
		o.Publisher = publisher
	}
}

func WithWorkers(n int) Option {
	return func(o *PipelineOptions) {
		o.Workers = n
	}
}

func WithoutPlaceholder() Option {
	return func(o *PipelineOptions) {
		o.DisablePlaceholder = true
	}
}

func WithoutResilience() Option {
	return func(o *PipelineOptions) {
		o.DisableResilience = true
	}
}
