package stepper

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stateforward/go-stepper/pkg/telemetry"
	"github.com/stateforward/go-stepper/queue"
)

// Phase is the lifecycle state of a Sequencer.
type Phase uint32

const (
	PhaseNew Phase = iota
	PhaseMounting
	PhaseRunning
	PhasePaused
	// PhaseIdle is a manual run waiting for Advance.
	PhaseIdle
	PhaseDone
	PhaseFailed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseMounting:
		return "mounting"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseIdle:
		return "idle"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint32(p))
	}
}

// job is a step waiting in a run's queue.
type job struct {
	index int
	step  Step
}

// run is one mounted generation: its agents, its step queue and the context
// every goroutine working for it derives from. A restart cancels the run and
// mounts a new one.
type run struct {
	id         string
	generation uint64
	manual     bool
	registry   Registry
	jobs       *queue.Queue[job]
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	playing    bool
}

// Sequencer drives a list of steps over a set of elements, automatically or
// one Advance at a time.
type Sequencer struct {
	surface  Surface
	options  options
	executor *Executor
	logger   *slog.Logger
	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu         sync.Mutex
	props      Props
	bound      *Handle
	base       context.Context
	stop       context.CancelFunc
	current    *run
	generation uint64
	phase      Phase
	closed     bool
}

// New validates props and prepares a sequencer. Nothing runs until Start.
func New(surface Surface, props Props, opts ...Option) (*Sequencer, error) {
	if surface == nil {
		return nil, &ConfigurationError{Reason: "a surface is required"}
	}
	if err := props.validate(); err != nil {
		return nil, err
	}
	o := makeOptions(opts...)
	return &Sequencer{
		surface:  surface,
		options:  o,
		executor: newExecutor(o),
		logger:   o.logger,
		props:    props.clone(),
	}, nil
}

// Start mounts the elements and materializes the step queue. In automatic
// mode playback begins in the background; in manual mode the handle is bound
// and steps wait for Advance. Cancelling ctx stops everything.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.base != nil {
		s.mu.Unlock()
		return ErrStarted
	}
	s.base, s.stop = context.WithCancel(ctx)
	s.generation++
	generation := s.generation
	s.phase = PhaseMounting
	s.mu.Unlock()
	return s.mount(generation)
}

func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Remaining returns the number of steps of the current run not yet consumed.
func (s *Sequencer) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.jobs.Len()
}

// RunID identifies the current run; it changes on every restart.
func (s *Sequencer) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.id
}

// Update replaces the props. A changed Update token, or changed Steps with
// ReloadOnStepsChange set, restarts the sequence from scratch. Changed
// Components are pushed into the existing elements. Clearing Paused resumes
// automatic playback with the remaining steps.
func (s *Sequencer) Update(props Props) error {
	if err := props.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	previous := s.props
	s.props = props.clone()
	if s.base == nil {
		return nil
	}
	changed := diff(previous, props)
	if changed.update || (props.ReloadOnStepsChange && changed.steps) {
		s.restartLocked()
		return nil
	}
	r := s.current
	if r == nil {
		// still mounting; the mount reads the latest props
		return nil
	}
	if changed.components {
		for id, agent := range r.registry {
			if err := agent.Render(props.Components[id]); err != nil {
				s.logger.Warn("push content", slog.String("element", id), slog.Any("error", err))
			}
		}
	}
	if r.manual {
		s.bindLocked(props.Handle)
	}
	if previous.Paused && !props.Paused {
		s.playLocked(r)
	}
	return nil
}

// Advance executes the front-most remaining step of a manual run and removes
// it from the queue. A call made while another is in flight, or with no
// steps left, does nothing and reports false.
func (s *Sequencer) Advance(ctx context.Context) (bool, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	r := s.current
	if r == nil {
		s.mu.Unlock()
		return false, nil
	}
	if !r.manual {
		s.mu.Unlock()
		return false, ErrNotManual
	}
	next, ok := r.jobs.Peek()
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	r.wg.Add(1)
	s.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	err := s.execute(ctx, r, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == r && ctx.Err() == nil {
		r.jobs.Pop()
		if r.jobs.Len() == 0 {
			s.phase = PhaseDone
		}
	}
	return true, err
}

// Close cancels the current run, stops every agent and its timers, and
// unbinds the handle. It must not be called from OnError while a restart is
// mounting.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.phase = PhaseClosed
	old := s.current
	s.current = nil
	if old != nil {
		old.cancel()
	}
	if s.stop != nil {
		s.stop()
	}
	handle := s.bound
	s.bound = nil
	s.mu.Unlock()

	if handle != nil {
		handle.unbind(s)
	}
	if old != nil {
		old.wg.Wait()
		old.registry.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Sequencer) mount(generation uint64) error {
	s.mu.Lock()
	if s.closed || generation != s.generation {
		s.mu.Unlock()
		return nil
	}
	props := s.props
	s.mu.Unlock()

	registry, err := s.buildRegistry(props.Components)
	if err != nil {
		s.mu.Lock()
		if !s.closed && generation == s.generation {
			s.phase = PhaseFailed
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || generation != s.generation {
		registry.Close()
		return nil
	}
	ctx, cancel := context.WithCancel(s.base)
	r := &run{
		id:         uuid.NewString(),
		generation: generation,
		manual:     s.props.ManualSteps,
		registry:   registry,
		jobs:       materialize(s.props.Steps),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.current = r
	s.logger.Info("sequence mounted",
		slog.String("run", r.id),
		slog.Int("steps", r.jobs.Len()),
		slog.Int("elements", len(registry)),
		slog.Bool("manual", r.manual),
	)
	if r.manual {
		s.bindLocked(s.props.Handle)
		s.phase = PhaseIdle
		return nil
	}
	s.bindLocked(nil)
	s.playLocked(r)
	return nil
}

// bindLocked points handle at s and releases the handle bound for an
// earlier run, if it was a different one.
func (s *Sequencer) bindLocked(handle *Handle) {
	if s.bound == handle {
		return
	}
	if s.bound != nil {
		s.bound.unbind(s)
	}
	s.bound = handle
	if handle != nil {
		handle.bind(s)
	}
}

func (s *Sequencer) buildRegistry(components map[ElementID]any) (Registry, error) {
	registry := make(Registry, len(components))
	for _, id := range slices.Sorted(maps.Keys(components)) {
		element, err := s.surface.Mount(id)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("mount element %q: %w", id, err)
		}
		agent := newAgent(id, element, s.options)
		registry[id] = agent
		if err := agent.Render(components[id]); err != nil {
			registry.Close()
			return nil, fmt.Errorf("render element %q: %w", id, err)
		}
	}
	return registry, nil
}

// materialize copies steps into a fresh queue so the run never shares state
// with the caller's list.
func materialize(steps []Step) *queue.Queue[job] {
	jobs := make([]job, len(steps))
	for i, step := range steps {
		jobs[i] = job{index: i, step: step.Clone()}
	}
	return queue.New(jobs...)
}

func (s *Sequencer) restartLocked() {
	old := s.current
	s.current = nil
	s.generation++
	generation := s.generation
	s.phase = PhaseMounting
	if old != nil {
		old.cancel()
		s.logger.Info("restarting sequence", slog.String("run", old.id))
	}
	s.wg.Add(1)
	go func() {
		err := s.remount(old, generation)
		s.wg.Done()
		if err == nil {
			return
		}
		s.logger.Error("remount sequence", slog.Any("error", err))
		s.mu.Lock()
		onError := s.props.OnError
		s.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	}()
}

func (s *Sequencer) remount(old *run, generation uint64) error {
	if old != nil {
		old.wg.Wait()
		old.registry.Close()
	}
	if err := s.options.clock.Sleep(s.base, s.options.settle); err != nil {
		return nil
	}
	return s.mount(generation)
}

func (s *Sequencer) playLocked(r *run) {
	if r.manual || r.playing {
		return
	}
	if s.props.Paused {
		s.phase = PhasePaused
		return
	}
	r.playing = true
	s.phase = PhaseRunning
	r.wg.Add(1)
	go func() {
		callback := s.play(r)
		r.wg.Done()
		if callback != nil {
			callback()
		}
	}()
}

// play consumes the run's queue strictly in order until it is empty, paused,
// cancelled or a step fails. The returned callback runs after the run's wait
// group is released, so hosts may Update or Close from OnEnd and OnError.
func (s *Sequencer) play(r *run) func() {
	consumed := false
	for {
		s.mu.Lock()
		if r.ctx.Err() != nil {
			r.playing = false
			s.mu.Unlock()
			return nil
		}
		if s.props.Paused {
			r.playing = false
			if s.current == r {
				s.phase = PhasePaused
			}
			s.mu.Unlock()
			return nil
		}
		next, ok := r.jobs.Pop()
		if !ok {
			r.playing = false
			if s.current == r {
				s.phase = PhaseDone
			}
			onEnd := s.props.OnEnd
			s.mu.Unlock()
			if consumed && onEnd != nil {
				return onEnd
			}
			return nil
		}
		s.mu.Unlock()

		consumed = true
		if err := s.execute(r.ctx, r, next); err != nil {
			s.mu.Lock()
			r.playing = false
			if r.ctx.Err() != nil {
				s.mu.Unlock()
				return nil
			}
			if s.current == r {
				s.phase = PhaseFailed
			}
			onError := s.props.OnError
			s.mu.Unlock()
			if onError != nil {
				return func() { onError(err) }
			}
			return nil
		}
	}
}

func (s *Sequencer) execute(ctx context.Context, r *run, next job) (err error) {
	ctx, span := telemetry.Start(ctx, s.options.tracer, "stepper.sequence",
		telemetry.RunKey.String(r.id),
		telemetry.StepKey.Int(next.index),
	)
	defer func() {
		telemetry.End(span, err)
	}()
	logger := s.logger.With(slog.String("run", r.id), slog.Int("step", next.index))
	logger.Debug("step start", slog.Any("elements", next.step.Elements))
	if err := s.executor.Execute(ctx, next.step, next.index, r.registry); err != nil {
		if ctx.Err() == nil {
			logger.Error("step failed", slog.Any("error", err))
		}
		return err
	}
	logger.Debug("step complete")
	return nil
}
