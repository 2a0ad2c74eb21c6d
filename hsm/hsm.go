// Package hsm is a hierarchical state machine. Models are built once from
// nested State, Transition and behavior declarations; each HSM instance runs
// a model against its own storage. Events are processed one at a time, and
// events dispatched from inside a behavior are queued until the current one
// has finished.
package hsm

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stateforward/go-stepper/clock"
	"github.com/stateforward/go-stepper/embedded"
	"github.com/stateforward/go-stepper/kinds"
	"github.com/stateforward/go-stepper/queue"
)

/******* Element *******/

type element struct {
	kind          uint64
	qualifiedName string
}

func (element *element) Kind() uint64 {
	if element == nil {
		return 0
	}
	return element.kind
}

func (element *element) Owner() string {
	if element == nil {
		return ""
	}
	return path.Dir(element.qualifiedName)
}

func (element *element) Name() string {
	if element == nil {
		return ""
	}
	return path.Base(element.qualifiedName)
}

func (element *element) QualifiedName() string {
	if element == nil {
		return ""
	}
	return element.qualifiedName
}

/******* Model *******/

type Element = embedded.Element

type Model struct {
	state
	id        string
	namespace map[string]embedded.Element
	elements  []RedifinableElement
}

func (model *Model) Id() string {
	return model.id
}

func (model *Model) Namespace() map[string]embedded.Element {
	return model.namespace
}

func (model *Model) Push(partial RedifinableElement) {
	model.elements = append(model.elements, partial)
}

type RedifinableElement = func(model *Model, stack []embedded.Element) embedded.Element

/******* Vertex *******/

type vertex struct {
	element
	transitions []string
}

func (vertex *vertex) Transitions() []string {
	return vertex.transitions
}

/******* State *******/

type state struct {
	vertex
	entry string
	exit  string
}

func (state *state) Entry() string {
	return state.entry
}

func (state *state) Exit() string {
	return state.exit
}

/******* Transition *******/

type paths struct {
	enter []string
	exit  []string
}

type transition struct {
	element
	source string
	target string
	guard  string
	effect string
	events []embedded.Event
	paths  map[string]paths
}

func (transition *transition) Guard() string {
	return transition.guard
}

func (transition *transition) Effect() string {
	return transition.effect
}

func (transition *transition) Events() []embedded.Event {
	return transition.events
}

func (transition *transition) Source() string {
	return transition.source
}

func (transition *transition) Target() string {
	return transition.target
}

/******* Behavior *******/

type behavior[T context.Context] struct {
	element
	action func(ctx Context[T], event Event)
}

/******* Constraint *******/

type constraint[T context.Context] struct {
	element
	expression func(ctx Context[T], event Event) bool
}

/******* Events *******/

type Event = embedded.Event

type event struct {
	element
	data any
}

func (event *event) Name() string {
	if event == nil {
		return ""
	}
	return event.qualifiedName
}

func (event *event) Data() any {
	if event == nil {
		return nil
	}
	return event.data
}

func NewEvent(name string, maybeData ...any) Event {
	var data any
	if len(maybeData) > 0 {
		data = maybeData[0]
	}
	return &event{
		element: element{kind: kinds.Event, qualifiedName: name},
		data:    data,
	}
}

/******* Builders *******/

func apply(model *Model, stack []embedded.Element, partials ...RedifinableElement) {
	for _, partial := range partials {
		partial(model, stack)
	}
}

// Define builds a model. Partial elements may push further partials while
// they are applied; Define keeps applying until none are left, which is how
// targets are validated and transition paths computed once every state exists.
func Define[T interface{ RedifinableElement | string }](nameOrRedifinableElement T, redifinableElements ...RedifinableElement) Model {
	name := "/"
	switch any(nameOrRedifinableElement).(type) {
	case string:
		name = path.Join(name, any(nameOrRedifinableElement).(string))
	case RedifinableElement:
		redifinableElements = append([]RedifinableElement{any(nameOrRedifinableElement).(RedifinableElement)}, redifinableElements...)
	}
	model := Model{
		state: state{
			vertex: vertex{element: element{kind: kinds.State, qualifiedName: "/"}, transitions: []string{}},
		},
		id:        name,
		namespace: map[string]embedded.Element{},
		elements:  redifinableElements,
	}

	stack := []embedded.Element{&model}
	for len(model.elements) > 0 {
		elements := model.elements
		model.elements = []RedifinableElement{}
		apply(&model, stack, elements...)
	}
	return model
}

func find(stack []embedded.Element, maybeKinds ...uint64) embedded.Element {
	for i := len(stack) - 1; i >= 0; i-- {
		if kinds.IsKind(stack[i].Kind(), maybeKinds...) {
			return stack[i]
		}
	}
	return nil
}

func get[T embedded.Element](model *Model, name string) T {
	var zero T
	if name == "" {
		return zero
	}
	if element, ok := model.namespace[name]; ok {
		typed, ok := element.(T)
		if ok {
			return typed
		}
	}
	return zero
}

func State(name string, partialElements ...RedifinableElement) RedifinableElement {
	return func(graph *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.State)
		if owner == nil {
			slog.Error("state must be called within a Model or State")
			panic(fmt.Errorf("state must be called within a Model or State"))
		}
		element := &state{
			vertex: vertex{element: element{kind: kinds.State, qualifiedName: path.Join(owner.QualifiedName(), name)}, transitions: []string{}},
		}
		graph.namespace[element.QualifiedName()] = element
		stack = append(stack, element)
		apply(graph, stack, partialElements...)
		return element
	}
}

// LCA finds the Lowest Common Ancestor between two qualified state names.
//
// For example:
// - LCA("/s/s1", "/s/s2") returns "/s"
// - LCA("/s/s1", "/s/s1/s11") returns "/s/s1"
// - LCA("/s/s1", "/s/s1") returns "/s"
func LCA(a, b string) string {
	// if both are the same the lca is the parent
	if a == b {
		return path.Dir(a)
	}
	// if one is empty the lca is the other
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	// if the parents are the same the lca is the parent
	if path.Dir(a) == path.Dir(b) {
		return path.Dir(a)
	}
	if IsAncestor(a, b) {
		return a
	}
	if IsAncestor(b, a) {
		return b
	}
	return LCA(path.Dir(a), path.Dir(b))
}

func IsAncestor(current, target string) bool {
	current = path.Clean(current)
	target = path.Clean(target)
	if current == target || current == "." || target == "." {
		return false
	}
	if current == "/" {
		return true
	}
	parent := path.Dir(target)
	for parent != "/" {
		if parent == current {
			return true
		}
		parent = path.Dir(parent)
	}
	return false
}

func contains(ancestor, qualifiedName string) bool {
	return qualifiedName == ancestor || IsAncestor(ancestor, qualifiedName)
}

func Transition[T interface{ RedifinableElement | string }](nameOrPartialElement T, partialElements ...RedifinableElement) RedifinableElement {
	name := ""
	switch any(nameOrPartialElement).(type) {
	case string:
		name = any(nameOrPartialElement).(string)
	case RedifinableElement:
		partialElements = append([]RedifinableElement{any(nameOrPartialElement).(RedifinableElement)}, partialElements...)
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Vertex)
		if owner == nil {
			panic(fmt.Errorf("transition must be called within a State"))
		}
		qualifiedName := path.Join(owner.QualifiedName(), name)
		if name == "" {
			qualifiedName = path.Join(owner.QualifiedName(), fmt.Sprintf("transition_%d", len(model.namespace)))
		}
		transition := &transition{
			events: []embedded.Event{},
			element: element{
				kind:          kinds.Transition,
				qualifiedName: qualifiedName,
			},
			paths: map[string]paths{},
		}
		model.namespace[transition.QualifiedName()] = transition
		stack = append(stack, transition)
		apply(model, stack, partialElements...)
		if transition.source == "" {
			transition.source = owner.QualifiedName()
		}
		sourceElement, ok := model.namespace[transition.source]
		if !ok {
			panic(fmt.Errorf("missing source %s", transition.source))
		}
		switch source := sourceElement.(type) {
		case *state:
			source.transitions = append(source.transitions, transition.QualifiedName())
		case *vertex:
			source.transitions = append(source.transitions, transition.QualifiedName())
		}
		if len(transition.events) == 0 && !kinds.IsKind(sourceElement.Kind(), kinds.Pseudostate) {
			panic(fmt.Errorf("transition %s has no trigger, completion transitions are not supported", transition.QualifiedName()))
		}
		if transition.target == transition.source {
			transition.kind = kinds.Self
		} else if transition.target == "" {
			transition.kind = kinds.Internal
		} else if IsAncestor(transition.source, transition.target) {
			transition.kind = kinds.Local
		} else {
			transition.kind = kinds.External
		}
		enter := []string{}
		entering := transition.target
		lca := LCA(transition.source, transition.target)
		for entering != lca && entering != "/" && entering != "" {
			enter = append([]string{entering}, enter...)
			entering = path.Dir(entering)
		}
		if kinds.IsKind(sourceElement.Kind(), kinds.Initial) {
			transition.paths[path.Dir(sourceElement.QualifiedName())] = paths{
				enter: enter,
				exit:  []string{sourceElement.QualifiedName()},
			}
			return transition
		}
		model.Push(func(model *Model, stack []embedded.Element) embedded.Element {
			// precompute transition paths for the source state and nested states
			for qualifiedName, element := range model.namespace {
				if !contains(transition.source, qualifiedName) || !kinds.IsKind(element.Kind(), kinds.State) {
					continue
				}
				exit := []string{}
				if transition.kind != kinds.Internal {
					exiting := qualifiedName
					for exiting != lca && exiting != "/" && exiting != "" {
						exit = append(exit, exiting)
						exiting = path.Dir(exiting)
					}
				}
				transition.paths[qualifiedName] = paths{
					enter: enter,
					exit:  exit,
				}
			}
			return transition
		})
		return transition
	}
}

func Source[T interface{ RedifinableElement | string }](nameOrPartialElement T) RedifinableElement {
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			panic(fmt.Errorf("Source() must be called within a Transition"))
		}
		transition := owner.(*transition)
		if transition.source != "" {
			panic(fmt.Errorf("transition %s already has source %s", transition.QualifiedName(), transition.source))
		}
		switch source := any(nameOrPartialElement).(type) {
		case string:
			qualifiedName := source
			if !path.IsAbs(qualifiedName) {
				if ancestor := find(stack, kinds.State); ancestor != nil {
					qualifiedName = path.Join(ancestor.QualifiedName(), qualifiedName)
				}
			}
			transition.source = qualifiedName
		case RedifinableElement:
			sourceElement := source(model, stack)
			if sourceElement == nil {
				panic(fmt.Errorf("source is nil"))
			}
			transition.source = sourceElement.QualifiedName()
		}
		return transition
	}
}

func Target[T interface{ RedifinableElement | string }](nameOrPartialElement T) RedifinableElement {
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			panic(fmt.Errorf("Target() must be called within a Transition"))
		}
		transition := owner.(*transition)
		if transition.target != "" {
			panic(fmt.Errorf("transition %s already has target %s", transition.QualifiedName(), transition.target))
		}
		var qualifiedName string
		switch target := any(nameOrPartialElement).(type) {
		case string:
			qualifiedName = target
			if !path.IsAbs(qualifiedName) {
				if ancestor := find(stack, kinds.State); ancestor != nil {
					qualifiedName = path.Join(ancestor.QualifiedName(), qualifiedName)
				}
			}
			// push a validation step to ensure the target exists after the model is built
			model.Push(func(model *Model, stack []embedded.Element) embedded.Element {
				if _, exists := model.namespace[qualifiedName]; !exists {
					panic(fmt.Errorf("missing target %s for transition %s", target, transition.QualifiedName()))
				}
				return transition
			})
		case RedifinableElement:
			targetElement := target(model, stack)
			if targetElement == nil {
				panic(fmt.Errorf("target is nil"))
			}
			qualifiedName = targetElement.QualifiedName()
		}

		transition.target = qualifiedName
		return transition
	}
}

func Effect[T context.Context](fn func(ctx Context[T], event Event), maybeName ...string) RedifinableElement {
	name := ".effect"
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			slog.Error("effect must be called within a Transition")
			panic(fmt.Errorf("effect must be called within a Transition"))
		}
		behavior := &behavior[T]{
			element: element{kind: kinds.Behavior, qualifiedName: path.Join(owner.QualifiedName(), name)},
			action:  fn,
		}
		model.namespace[behavior.QualifiedName()] = behavior
		owner.(*transition).effect = behavior.QualifiedName()
		return owner
	}
}

func Guard[T context.Context](fn func(ctx Context[T], event Event) bool, maybeName ...string) RedifinableElement {
	name := ".guard"
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			panic(fmt.Errorf("guard must be called within a Transition"))
		}
		constraint := &constraint[T]{
			element:    element{kind: kinds.Constraint, qualifiedName: path.Join(owner.QualifiedName(), name)},
			expression: fn,
		}
		model.namespace[constraint.QualifiedName()] = constraint
		owner.(*transition).guard = constraint.QualifiedName()
		return owner
	}
}

func Initial[T interface{ string | RedifinableElement }](elementOrName T, partialElements ...RedifinableElement) RedifinableElement {
	name := ".initial"
	switch any(elementOrName).(type) {
	case string:
		partialElements = append([]RedifinableElement{Target(any(elementOrName).(string))}, partialElements...)
	case RedifinableElement:
		partialElements = append([]RedifinableElement{any(elementOrName).(RedifinableElement)}, partialElements...)
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.State)
		if owner == nil {
			panic(fmt.Errorf("initial must be called within a State"))
		}
		initial := &vertex{
			element: element{kind: kinds.Initial, qualifiedName: path.Join(owner.QualifiedName(), name)},
		}
		if model.namespace[initial.QualifiedName()] != nil {
			panic(fmt.Errorf("initial %s state already exists for %s", initial.QualifiedName(), owner.QualifiedName()))
		}
		model.namespace[initial.QualifiedName()] = initial
		stack = append(stack, initial)
		transition := (Transition(Source(initial.QualifiedName()), partialElements...)(model, stack)).(*transition)
		if transition.guard != "" {
			panic(fmt.Errorf("initial %s cannot have a guard", initial.QualifiedName()))
		}
		if len(transition.events) > 0 {
			panic(fmt.Errorf("initial %s cannot have triggers", initial.QualifiedName()))
		}
		if !IsAncestor(owner.QualifiedName(), transition.target) {
			panic(fmt.Errorf("initial %s must target a nested state not %s", initial.QualifiedName(), transition.target))
		}
		return transition
	}
}

func Entry[T context.Context](fn func(ctx Context[T], event Event), maybeName ...string) RedifinableElement {
	name := ".entry"
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.State)
		if owner == nil {
			slog.Error("entry must be called within a State")
			panic(fmt.Errorf("entry must be called within a State"))
		}
		element := &behavior[T]{
			element: element{kind: kinds.Behavior, qualifiedName: path.Join(owner.QualifiedName(), name)},
			action:  fn,
		}
		model.namespace[element.QualifiedName()] = element
		owner.(*state).entry = element.QualifiedName()
		return element
	}
}

func Exit[T context.Context](fn func(ctx Context[T], event Event), maybeName ...string) RedifinableElement {
	name := ".exit"
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.State)
		if owner == nil {
			slog.Error("exit must be called within a State")
			panic(fmt.Errorf("exit must be called within a State"))
		}
		element := &behavior[T]{
			element: element{kind: kinds.Behavior, qualifiedName: path.Join(owner.QualifiedName(), name)},
			action:  fn,
		}
		model.namespace[element.QualifiedName()] = element
		owner.(*state).exit = element.QualifiedName()
		return element
	}
}

// Trigger adds the named events to a transition. Names are matched with
// path.Match, so a trigger may be a pattern.
func Trigger(names ...string) RedifinableElement {
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			panic(fmt.Errorf("trigger must be called within a Transition"))
		}
		transition := owner.(*transition)
		for _, name := range names {
			transition.events = append(transition.events, &event{
				element: element{kind: kinds.Event, qualifiedName: name},
			})
		}
		return owner
	}
}

// After fires a transition once the duration returned by expr has elapsed
// since its source state was entered. expr is evaluated on entry.
func After[T context.Context](expr func(ctx Context[T]) time.Duration, maybeName ...string) RedifinableElement {
	name := ".after"
	if len(maybeName) > 0 {
		name = maybeName[0]
	}
	return func(model *Model, stack []embedded.Element) embedded.Element {
		owner := find(stack, kinds.Transition)
		if owner == nil {
			panic(fmt.Errorf("after must be called within a Transition"))
		}
		qualifiedName := path.Join(owner.QualifiedName(), strconv.Itoa(len(owner.(*transition).events)), name)
		owner.(*transition).events = append(owner.(*transition).events, &event{
			element: element{kind: kinds.TimeEvent, qualifiedName: qualifiedName},
			data:    expr,
		})
		return owner
	}
}

/******* HSM *******/

type subcontext = context.Context

type HSM[T context.Context] struct {
	subcontext
	Storage T
	cancel  context.CancelFunc
	model   *Model
	clock   clock.Clock
	trace   Trace
	mutex   sync.Mutex
	state   embedded.Element
	current atomic.Value
	active  map[string]*active
	queue   *queue.Queue[Event]
}

// Context is what behaviors, guards and time expressions receive.
type Context[T context.Context] struct {
	subcontext
	*HSM[T]
}

// Dispatch queues event behind the one being processed. Behaviors must use
// it instead of HSM.Dispatch, which would wait for themselves to finish.
func (ctx Context[T]) Dispatch(event Event) {
	ctx.queue.Push(event)
}

// active is the lifetime of one armed time event.
type active struct {
	context.Context
	cancel context.CancelFunc
}

type Trace func(ctx context.Context, step string, elements ...embedded.Element) func(...any)

type Config struct {
	// Clock runs the timers of After transitions. Defaults to clock.Make().
	Clock clock.Clock
	Trace Trace
}

// New starts an instance of model and enters its initial state before
// returning.
func New[T context.Context](ctx T, model *Model, maybeConfig ...Config) *HSM[T] {
	var config Config
	if len(maybeConfig) > 0 {
		config = maybeConfig[0]
	}
	if config.Clock == nil {
		config.Clock = clock.Make()
	}
	hsm := &HSM[T]{
		Storage: ctx,
		model:   model,
		clock:   config.Clock,
		trace:   config.Trace,
		active:  map[string]*active{},
		queue:   queue.New[Event](),
	}
	hsm.current.Store("")
	hsm.subcontext, hsm.cancel = context.WithCancel(ctx)
	hsm.mutex.Lock()
	defer hsm.mutex.Unlock()
	hsm.state = hsm.initial(&model.state, nil)
	hsm.process()
	return hsm
}

// State returns the qualified name of the state entered last, or "" once
// the machine has terminated. It is safe to call from any goroutine.
func (hsm *HSM[T]) State() string {
	if hsm == nil {
		return ""
	}
	return hsm.current.Load().(string)
}

// Terminate exits every active state, innermost first, and stops all
// pending timers. Later dispatches are ignored.
func (hsm *HSM[T]) Terminate() {
	if hsm == nil {
		return
	}
	hsm.mutex.Lock()
	defer hsm.mutex.Unlock()
	if hsm.state == nil {
		return
	}
	if hsm.trace != nil {
		defer hsm.trace(hsm, "Terminate", hsm.state)()
	}
	for current := hsm.state; current != nil; {
		hsm.exit(current, nil)
		owner, ok := hsm.model.namespace[current.Owner()]
		if !ok {
			break
		}
		current = owner
	}
	hsm.state = nil
	hsm.current.Store("")
	hsm.cancel()
}

func (hsm *HSM[T]) activate(qualifiedName string) *active {
	if previous, ok := hsm.active[qualifiedName]; ok {
		previous.cancel()
	}
	current := &active{}
	current.Context, current.cancel = context.WithCancel(hsm.subcontext)
	hsm.active[qualifiedName] = current
	return current
}

func (hsm *HSM[T]) enter(element embedded.Element, event Event, defaultEntry bool) embedded.Element {
	if hsm.trace != nil {
		defer hsm.trace(hsm, "enter", element)()
	}
	state, ok := element.(embedded.State)
	if !ok {
		return element
	}
	hsm.current.Store(state.QualifiedName())
	if entry := get[*behavior[T]](hsm.model, state.Entry()); entry != nil {
		hsm.execute(entry, event)
	}
	for _, qualifiedName := range state.Transitions() {
		transition := get[*transition](hsm.model, qualifiedName)
		if transition == nil {
			continue
		}
		for _, timeEvent := range transition.Events() {
			if !kinds.IsKind(timeEvent.Kind(), kinds.TimeEvent) {
				continue
			}
			expr, ok := timeEvent.Data().(func(ctx Context[T]) time.Duration)
			if !ok {
				continue
			}
			ctx := hsm.activate(timeEvent.Name())
			duration := expr(Context[T]{subcontext: ctx, HSM: hsm})
			go hsm.wait(ctx, timeEvent.Name(), duration)
		}
	}
	if !defaultEntry {
		return element
	}
	return hsm.initial(element, event)
}

// wait dispatches the time event called name once d has elapsed, unless the
// state that armed it is exited first.
func (hsm *HSM[T]) wait(ctx *active, name string, d time.Duration) {
	if err := hsm.clock.Sleep(ctx, d); err != nil {
		return
	}
	hsm.Dispatch(&event{
		element: element{kind: kinds.TimeEvent, qualifiedName: name},
		data:    ctx,
	})
}

func (hsm *HSM[T]) initial(element embedded.Element, event Event) embedded.Element {
	if element == nil {
		return nil
	}
	if hsm.trace != nil {
		defer hsm.trace(hsm, "initial", element)()
	}
	qualifiedName := path.Join(element.QualifiedName(), ".initial")
	if initial := get[*vertex](hsm.model, qualifiedName); initial != nil {
		if len(initial.transitions) > 0 {
			if transition := get[*transition](hsm.model, initial.transitions[0]); transition != nil {
				return hsm.transition(element, transition, event)
			}
		}
	}
	return element
}

func (hsm *HSM[T]) exit(element embedded.Element, event Event) {
	if element == nil {
		return
	}
	if hsm.trace != nil {
		defer hsm.trace(hsm, "exit", element)()
	}
	state, ok := element.(embedded.State)
	if !ok {
		return
	}
	for _, qualifiedName := range state.Transitions() {
		transition := get[*transition](hsm.model, qualifiedName)
		if transition == nil {
			continue
		}
		for _, timeEvent := range transition.Events() {
			if active, ok := hsm.active[timeEvent.Name()]; ok {
				active.cancel()
				delete(hsm.active, timeEvent.Name())
			}
		}
	}
	if exit := get[*behavior[T]](hsm.model, state.Exit()); exit != nil {
		hsm.execute(exit, event)
	}
}

func (hsm *HSM[T]) execute(element *behavior[T], event Event) {
	if element == nil || element.action == nil {
		return
	}
	if hsm.trace != nil {
		defer hsm.trace(hsm, "execute", element)()
	}
	element.action(Context[T]{
		subcontext: hsm.subcontext,
		HSM:        hsm,
	}, event)
}

func (hsm *HSM[T]) evaluate(guard *constraint[T], event Event) bool {
	if guard == nil || guard.expression == nil {
		return true
	}
	if hsm.trace != nil {
		defer hsm.trace(hsm, "evaluate", guard)()
	}
	return guard.expression(
		Context[T]{
			subcontext: hsm.subcontext,
			HSM:        hsm,
		},
		event,
	)
}

func (hsm *HSM[T]) transition(current embedded.Element, transition *transition, event Event) embedded.Element {
	if hsm.trace != nil {
		defer hsm.trace(hsm, "transition", transition)()
	}
	path, ok := transition.paths[current.QualifiedName()]
	if !ok {
		return current
	}
	for _, exiting := range path.exit {
		current, ok = hsm.model.namespace[exiting]
		if !ok {
			return nil
		}
		hsm.exit(current, event)
	}
	if effect := get[*behavior[T]](hsm.model, transition.effect); effect != nil {
		hsm.execute(effect, event)
	}
	if kinds.IsKind(transition.kind, kinds.Internal) {
		return current
	}
	for _, entering := range path.enter {
		next, ok := hsm.model.namespace[entering]
		if !ok {
			return nil
		}
		defaultEntry := entering == transition.target
		current = hsm.enter(next, event, defaultEntry)
		if defaultEntry {
			return current
		}
	}
	current, ok = hsm.model.namespace[transition.target]
	if !ok {
		return nil
	}
	return current
}

func (hsm *HSM[T]) enabled(source embedded.Vertex, event Event) *transition {
	for _, transitionQualifiedName := range source.Transitions() {
		transition := get[*transition](hsm.model, transitionQualifiedName)
		if transition == nil {
			continue
		}
		for _, evt := range transition.Events() {
			if matched, err := path.Match(evt.Name(), event.Name()); err != nil || !matched {
				continue
			}
			if kinds.IsKind(evt.Kind(), kinds.TimeEvent) && !hsm.armed(event) {
				continue
			}
			if guard := get[*constraint[T]](hsm.model, transition.Guard()); guard != nil {
				if !hsm.evaluate(guard, event) {
					continue
				}
			}
			return transition
		}
	}
	return nil
}

// armed reports whether a time event still belongs to the state entry that
// started its timer. A timer that fired while its state was being exited
// must not drive a later visit to the same state.
func (hsm *HSM[T]) armed(event Event) bool {
	if !kinds.IsKind(event.Kind(), kinds.TimeEvent) {
		return false
	}
	active, ok := hsm.active[event.Name()]
	if !ok || active.Err() != nil {
		return false
	}
	return event.Data() == any(active)
}

func (hsm *HSM[T]) process() {
	for event, ok := hsm.queue.Pop(); ok; event, ok = hsm.queue.Pop() {
		if hsm.state == nil {
			return
		}
		qualifiedName := hsm.state.QualifiedName()
		for qualifiedName != "/" && qualifiedName != "." {
			source := get[embedded.Vertex](hsm.model, qualifiedName)
			if source == nil {
				break
			}
			if transition := hsm.enabled(source, event); transition != nil {
				hsm.state = hsm.transition(hsm.state, transition, event)
				break
			}
			qualifiedName = source.Owner()
		}
	}
}

// Dispatch processes event and every event its behaviors dispatch before
// returning. Calls from different goroutines are serialized.
func (hsm *HSM[T]) Dispatch(event Event) {
	if hsm == nil || event == nil {
		return
	}
	hsm.mutex.Lock()
	defer hsm.mutex.Unlock()
	if hsm.state == nil {
		return
	}
	hsm.queue.Push(event)
	hsm.process()
}
