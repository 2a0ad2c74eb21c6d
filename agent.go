package stepper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stateforward/go-stepper/embedded"
	"github.com/stateforward/go-stepper/hsm"
	"github.com/stateforward/go-stepper/pkg/set"
	"github.com/stateforward/go-stepper/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Status is the lifecycle state of an Agent.
type Status uint32

const (
	StatusIdle Status = iota
	StatusInitialized
	StatusExecuting
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInitialized:
		return "initialized"
	case StatusExecuting:
		return "executing"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// event names understood by the lifecycle model
const (
	assignEvent = "assign"
	clearEvent  = "clear"
	renderEvent = "render"
	failedEvent = "failed"
)

var errAbandoned = errors.New("step abandoned before completion")

// statuses maps lifecycle states to the status reported for them. /busy is
// only current for the instant between entering it and its substate.
var statuses = map[string]Status{
	"/idle":             StatusIdle,
	"/busy":             StatusInitialized,
	"/busy/initialized": StatusInitialized,
	"/busy/executing":   StatusExecuting,
	"/finished":         StatusFinished,
}

// machine is the storage the lifecycle model runs against.
type machine struct {
	context.Context
	agent *Agent
}

func rendering() hsm.RedifinableElement {
	return hsm.Transition(hsm.Trigger(renderEvent), hsm.Effect(render))
}

// lifecycle takes an element from idle through a step and back. Timed
// transitions cover the per-element delay and the step duration; leaving
// executing, whichever way, undoes a config that is not kept.
var lifecycle = hsm.Define(
	"agent",
	hsm.State("idle",
		hsm.Transition(hsm.Trigger(assignEvent), hsm.Target("/busy/initialized")),
		rendering(),
	),
	hsm.State("busy",
		hsm.State("initialized",
			hsm.Entry(accept),
			hsm.Transition(hsm.After(delay), hsm.Target("/busy/executing")),
		),
		hsm.State("executing",
			hsm.Entry(begin),
			hsm.Exit(settle),
			hsm.Transition(hsm.After(duration), hsm.Target("/finished")),
			hsm.Transition(hsm.Trigger(failedEvent), hsm.Target("/finished")),
		),
		hsm.Transition(hsm.Trigger(assignEvent), hsm.Effect(reject)),
		hsm.Transition(hsm.Trigger(clearEvent), hsm.Guard(assigned), hsm.Target("/idle"), hsm.Effect(abandon)),
		rendering(),
	),
	hsm.State("finished",
		hsm.Entry(complete),
		hsm.Transition(hsm.Trigger(assignEvent), hsm.Target("/busy/initialized")),
		hsm.Transition(hsm.Trigger(clearEvent), hsm.Guard(assigned), hsm.Target("/idle"), hsm.Effect(abandon)),
		rendering(),
	),
	hsm.Initial("idle"),
)

// request carries an assign event's payload.
type request struct {
	index  int
	step   Step
	config *Config
	parent context.Context
	reply  chan reply
}

type reply struct {
	done <-chan error
	err  error
}

// assignment is one step as seen by one agent.
type assignment struct {
	index    int
	step     Step
	config   *Config
	added    []string
	snapshot Style
	reverted error
	done     chan error
	span     trace.Span
	ended    bool
}

func (asg *assignment) end(err error) {
	if asg.ended {
		return
	}
	asg.ended = true
	telemetry.End(asg.span, err)
}

func (asg *assignment) kept() bool {
	return asg.config != nil && asg.config.KeepConfig
}

// Agent drives one element through the steps it takes part in. External
// events reach the agent's lifecycle machine through a bounded mailbox;
// the machine serializes them with its own timers, so element mutations
// never overlap.
type Agent struct {
	id      ElementID
	element Element
	logger  *slog.Logger
	tracer  trace.Tracer
	machine *hsm.HSM[*machine]
	mailbox chan hsm.Event
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	unmount sync.Once

	// owned by the machine
	current    *assignment
	kept       *set.Set[string]
	keptStyles []Style
}

// NewAgent starts an agent for element. The caller owns it and must Close it.
func NewAgent(id ElementID, element Element, opts ...Option) *Agent {
	return newAgent(id, element, makeOptions(opts...))
}

func newAgent(id ElementID, element Element, o options) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	agent := &Agent{
		id:      id,
		element: element,
		logger:  o.logger.With(slog.String("element", id)),
		tracer:  o.tracer,
		mailbox: make(chan hsm.Event, o.mailbox),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		kept:    set.New[string](),
	}
	agent.machine = hsm.New(&machine{Context: ctx, agent: agent}, &lifecycle, hsm.Config{
		Clock: o.clock,
		Trace: agent.trace,
	})
	go agent.run()
	return agent
}

func (a *Agent) ID() ElementID {
	return a.id
}

func (a *Agent) Status() Status {
	return statuses[a.machine.State()]
}

// AssignStep hands a step to the agent. The returned channel receives exactly
// one value when the agent's portion of the step is done, unless ClearStep or
// Close abandons it first. config may be nil: the element then only takes
// part in the step's timing.
func (a *Agent) AssignStep(ctx context.Context, step Step, config *Config, index int) (<-chan error, error) {
	replies := make(chan reply, 1)
	err := a.post(ctx, hsm.NewEvent(assignEvent, &request{
		index:  index,
		step:   step,
		config: config,
		parent: ctx,
		reply:  replies,
	}))
	if err != nil {
		return nil, err
	}
	select {
	case r := <-replies:
		return r.done, r.err
	case <-a.stopped:
		return nil, ErrAgentClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ClearStep returns the agent to idle after the step at index, abandoning its
// completion channel and cancelling any timer still pending for it.
func (a *Agent) ClearStep(index int) {
	_ = a.post(context.Background(), hsm.NewEvent(clearEvent, index))
}

// Render pushes new content into the element without touching its animation state.
func (a *Agent) Render(content any) error {
	return a.post(context.Background(), hsm.NewEvent(renderEvent, content))
}

// Close stops the agent. The lifecycle machine is terminated, which cancels
// pending timers and undoes a step still executing, and the element is
// unmounted; nothing touches the element after Close returns.
func (a *Agent) Close() error {
	a.cancel()
	<-a.stopped
	var err error
	a.unmount.Do(func() {
		if unmounter, ok := a.element.(Unmounter); ok {
			err = unmounter.Unmount()
		}
	})
	return err
}

func (a *Agent) post(ctx context.Context, event hsm.Event) error {
	if a.ctx.Err() != nil {
		return ErrAgentClosed
	}
	select {
	case a.mailbox <- event:
		return nil
	case <-a.ctx.Done():
		return ErrAgentClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.ctx.Done():
			a.machine.Terminate()
			if a.current != nil {
				a.current.end(ErrAgentClosed)
				a.current = nil
			}
			return
		case event := <-a.mailbox:
			a.machine.Dispatch(event)
		}
	}
}

func (a *Agent) trace(ctx context.Context, step string, elements ...embedded.Element) func(...any) {
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return func(...any) {}
	}
	for _, element := range elements {
		attrs := []any{slog.String("step", step), slog.String("name", element.QualifiedName())}
		if transition, ok := element.(embedded.Transition); ok {
			attrs = append(attrs, slog.String("source", transition.Source()), slog.String("target", transition.Target()))
		}
		a.logger.Debug("lifecycle", attrs...)
	}
	return func(...any) {}
}

func accept(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	req, ok := event.Data().(*request)
	if !ok {
		return
	}
	parent := req.parent
	if parent == nil {
		parent = context.Background()
	}
	_, span := telemetry.Start(parent, a.tracer, "stepper.agent",
		telemetry.ElementKey.String(a.id),
		telemetry.StepKey.Int(req.index),
		telemetry.Milliseconds(telemetry.DurationKey, req.step.Duration),
		telemetry.KeepKey.Bool(req.config != nil && req.config.KeepConfig),
	)
	a.current = &assignment{
		index:  req.index,
		step:   req.step,
		config: req.config,
		done:   make(chan error, 1),
		span:   span,
	}
	req.reply <- reply{done: a.current.done}
}

func reject(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	if req, ok := event.Data().(*request); ok {
		req.reply <- reply{err: fmt.Errorf("element %q step %d: %w", a.id, req.index, ErrAgentBusy)}
	}
}

func delay(ctx hsm.Context[*machine]) time.Duration {
	if asg := ctx.Storage.agent.current; asg != nil && asg.config != nil {
		return asg.config.Delay
	}
	return 0
}

func duration(ctx hsm.Context[*machine]) time.Duration {
	if asg := ctx.Storage.agent.current; asg != nil {
		return asg.step.Duration
	}
	return 0
}

func begin(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	asg := a.current
	if asg == nil {
		return
	}
	if err := a.apply(asg); err != nil {
		a.logger.Error("apply step config", slog.Int("step", asg.index), slog.Any("error", err))
		ctx.Dispatch(hsm.NewEvent(failedEvent, err))
	}
}

// settle undoes a config that is not kept, whether the step elapsed, failed
// or was cleared.
func settle(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	asg := a.current
	if asg == nil || asg.config == nil || asg.kept() {
		return
	}
	if err := a.revert(asg); err != nil {
		a.logger.Error("revert step config", slog.Int("step", asg.index), slog.Any("error", err))
		asg.reverted = err
	}
}

func complete(ctx hsm.Context[*machine], event hsm.Event) {
	asg := ctx.Storage.agent.current
	if asg == nil {
		return
	}
	err, _ := event.Data().(error)
	err = errors.Join(err, asg.reverted)
	asg.end(err)
	asg.done <- err
}

func assigned(ctx hsm.Context[*machine], event hsm.Event) bool {
	a := ctx.Storage.agent
	index, ok := event.Data().(int)
	if !ok || a.current == nil {
		return false
	}
	if a.current.index != index {
		a.logger.Debug("ignoring clear for another step", slog.Int("step", index), slog.Int("current", a.current.index))
		return false
	}
	return true
}

func abandon(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	if a.current != nil {
		a.current.end(errAbandoned)
		a.current = nil
	}
}

func render(ctx hsm.Context[*machine], event hsm.Event) {
	a := ctx.Storage.agent
	if err := a.element.Render(event.Data()); err != nil {
		a.logger.Error("render content", slog.Any("error", err))
	}
}

func (a *Agent) apply(asg *assignment) error {
	config := asg.config
	if config == nil {
		a.logger.Debug("no config for element, timing only", slog.Int("step", asg.index))
		return nil
	}
	if config.RemovePrevAnimations {
		if err := a.revertKept(); err != nil {
			return fmt.Errorf("remove previous animations: %w", err)
		}
	}
	if len(config.Classes) > 0 {
		added, err := a.element.AddClasses(config.Classes)
		asg.added = added
		if err != nil {
			return fmt.Errorf("add classes: %w", err)
		}
	}
	snapshot, err := a.element.SetStyle(EffectiveStyle(asg.step.Duration, config.Style))
	if err != nil {
		return fmt.Errorf("set style: %w", err)
	}
	asg.snapshot = snapshot
	if config.KeepConfig {
		a.kept.Add(asg.added...)
		a.keptStyles = append(a.keptStyles, snapshot)
	}
	return nil
}

func (a *Agent) revert(asg *assignment) error {
	var errs []error
	if len(asg.added) > 0 {
		if err := a.element.RemoveClasses(asg.added); err != nil {
			errs = append(errs, fmt.Errorf("remove classes: %w", err))
		}
	}
	if asg.snapshot != nil {
		if err := a.element.RestoreStyle(asg.snapshot); err != nil {
			errs = append(errs, fmt.Errorf("restore style: %w", err))
		}
	}
	asg.added, asg.snapshot = nil, nil
	return errors.Join(errs...)
}

// revertKept undoes every config kept by earlier steps, newest first, so the
// oldest snapshot wins for properties touched more than once.
func (a *Agent) revertKept() error {
	var errs []error
	if a.kept.Len() > 0 {
		if err := a.element.RemoveClasses(a.kept.Slice()); err != nil {
			errs = append(errs, err)
		}
		a.kept.Clear()
	}
	for i := len(a.keptStyles) - 1; i >= 0; i-- {
		if err := a.element.RestoreStyle(a.keptStyles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	a.keptStyles = nil
	return errors.Join(errs...)
}
