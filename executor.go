package stepper

import (
	"context"
	"log/slog"
	"time"

	"github.com/stateforward/go-stepper/clock"
	"github.com/stateforward/go-stepper/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Registry maps element ids to their agents. A registry is built once per
// run and only read afterwards.
type Registry map[ElementID]*Agent

func (r Registry) Close() {
	for _, agent := range r {
		_ = agent.Close()
	}
}

// Executor runs a single step against a registry.
type Executor struct {
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
	gap    time.Duration
}

func NewExecutor(opts ...Option) *Executor {
	return newExecutor(makeOptions(opts...))
}

func newExecutor(o options) *Executor {
	return &Executor{
		clock:  o.clock,
		logger: o.logger,
		tracer: o.tracer,
		gap:    o.gap,
	}
}

// Execute runs step: pre-delay, parallel fan-out to every registered element,
// join, cleanup, then the post-delay (or the minimum step gap). Elements
// missing from the registry are skipped. Agents are cleared even when the
// join fails or ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, step Step, index int, registry Registry) (err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "stepper.step",
		telemetry.StepKey.Int(index),
		telemetry.ElementsKey.StringSlice(step.Elements),
		telemetry.Milliseconds(telemetry.DurationKey, step.Duration),
	)
	defer func() {
		telemetry.End(span, err)
	}()
	logger := e.logger.With(slog.Int("step", index))

	if step.PreDelay > 0 {
		if err := e.clock.Sleep(ctx, step.PreDelay); err != nil {
			return err
		}
	}

	participants := make([]*Agent, 0, len(step.Elements))
	var group errgroup.Group
	for _, id := range step.Elements {
		agent, ok := registry[id]
		if !ok {
			logger.Warn("step references an unknown element", slog.String("element", id))
			continue
		}
		config, ok := step.ConfigFor(id)
		if !ok && step.PerElement() {
			logger.Debug("no config for element", slog.String("element", id))
		}
		participants = append(participants, agent)
		group.Go(func() error {
			done, err := agent.AssignStep(ctx, step, config, index)
			if err != nil {
				return err
			}
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err = group.Wait()
	for _, agent := range participants {
		agent.ClearStep(index)
	}
	if err != nil {
		return err
	}

	gap := e.gap
	if step.PostDelay > 0 {
		gap = step.PostDelay
	}
	return e.clock.Sleep(ctx, gap)
}
