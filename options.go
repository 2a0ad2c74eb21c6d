package stepper

import (
	"log/slog"
	"time"

	"github.com/stateforward/go-stepper/clock"
	"github.com/stateforward/go-stepper/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	clock   clock.Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	gap     time.Duration
	settle  time.Duration
	mailbox int
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithStepGap sets the minimum wait after a step that has no PostDelay.
func WithStepGap(d time.Duration) Option {
	return func(o *options) {
		o.gap = d
	}
}

// WithSettleDelay sets the wait between discarding agents and restarting.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// WithMailbox sets the capacity of each agent's event mailbox.
func WithMailbox(size int) Option {
	return func(o *options) {
		o.mailbox = size
	}
}

func makeOptions(opts ...Option) options {
	o := options{
		gap:     DefaultStepGap,
		settle:  DefaultSettleDelay,
		mailbox: DefaultMailboxSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Make()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = telemetry.Noop()
	}
	if o.mailbox < 1 {
		o.mailbox = 1
	}
	return o
}
