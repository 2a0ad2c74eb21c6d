// Package surface provides Surface implementations for hosts without a real
// rendering layer: an in-memory surface that records every change, and a
// terminal surface that prints them.
package surface

import (
	"maps"
	"slices"
	"sync"
	"time"

	stepper "github.com/stateforward/go-stepper"
	"github.com/stateforward/go-stepper/pkg/set"
)

type Op string

const (
	OpMount         Op = "mount"
	OpRender        Op = "render"
	OpAddClasses    Op = "add-classes"
	OpRemoveClasses Op = "remove-classes"
	OpSetStyle      Op = "set-style"
	OpRestoreStyle  Op = "restore-style"
	OpUnmount       Op = "unmount"
)

// Change is one recorded mutation.
type Change struct {
	At      time.Time
	Element stepper.ElementID
	Op      Op
	Classes []string
	Style   stepper.Style
	Content any
}

// Memory keeps element state in memory and records a timestamped history.
type Memory struct {
	mu        sync.Mutex
	elements  map[stepper.ElementID]*MemoryElement
	history   []Change
	observers []func(Change)
	fault     func(id stepper.ElementID, op Op) error
}

func NewMemory() *Memory {
	return &Memory{elements: map[stepper.ElementID]*MemoryElement{}}
}

// Observe registers fn to be called after every recorded change.
func (m *Memory) Observe(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Fail installs a fault injector. A non-nil error returned for an operation
// makes that operation fail without changing state.
func (m *Memory) Fail(fn func(id stepper.ElementID, op Op) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *Memory) Mount(id stepper.ElementID) (stepper.Element, error) {
	m.mu.Lock()
	if err := m.faultLocked(id, OpMount); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	element := &MemoryElement{
		surface: m,
		id:      id,
		classes: set.New[string](),
		style:   stepper.Style{},
		mounted: true,
	}
	m.elements[id] = element
	m.unlock(Change{Element: id, Op: OpMount})
	return element, nil
}

// Element returns the most recently mounted element for id.
func (m *Memory) Element(id stepper.ElementID) *MemoryElement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elements[id]
}

func (m *Memory) History() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// Changes returns the recorded changes of one element with the given op.
func (m *Memory) Changes(id stepper.ElementID, op Op) []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changes []Change
	for _, change := range m.history {
		if change.Element == id && change.Op == op {
			changes = append(changes, change)
		}
	}
	return changes
}

func (m *Memory) faultLocked(id stepper.ElementID, op Op) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(id, op)
}

// unlock records change, releases the lock and notifies observers.
func (m *Memory) unlock(change Change) {
	change.At = time.Now()
	m.history = append(m.history, change)
	observers := slices.Clone(m.observers)
	m.mu.Unlock()
	for _, observer := range observers {
		observer(change)
	}
}

// MemoryElement is an element held by a Memory surface.
type MemoryElement struct {
	surface *Memory
	id      stepper.ElementID
	content any
	classes *set.Set[string]
	style   stepper.Style
	mounted bool
}

func (e *MemoryElement) Render(content any) error {
	e.surface.mu.Lock()
	if err := e.surface.faultLocked(e.id, OpRender); err != nil {
		e.surface.mu.Unlock()
		return err
	}
	e.content = content
	e.surface.unlock(Change{Element: e.id, Op: OpRender, Content: content})
	return nil
}

func (e *MemoryElement) AddClasses(classes []string) ([]string, error) {
	e.surface.mu.Lock()
	if err := e.surface.faultLocked(e.id, OpAddClasses); err != nil {
		e.surface.mu.Unlock()
		return nil, err
	}
	added := e.classes.Add(classes...)
	e.surface.unlock(Change{Element: e.id, Op: OpAddClasses, Classes: slices.Clone(added)})
	return added, nil
}

func (e *MemoryElement) RemoveClasses(classes []string) error {
	e.surface.mu.Lock()
	if err := e.surface.faultLocked(e.id, OpRemoveClasses); err != nil {
		e.surface.mu.Unlock()
		return err
	}
	removed := e.classes.Remove(classes...)
	e.surface.unlock(Change{Element: e.id, Op: OpRemoveClasses, Classes: removed})
	return nil
}

func (e *MemoryElement) SetStyle(style stepper.Style) (stepper.Style, error) {
	e.surface.mu.Lock()
	if err := e.surface.faultLocked(e.id, OpSetStyle); err != nil {
		e.surface.mu.Unlock()
		return nil, err
	}
	previous := make(stepper.Style, len(style))
	for property, value := range style {
		previous[property] = e.style[property]
		e.put(property, value)
	}
	e.surface.unlock(Change{Element: e.id, Op: OpSetStyle, Style: maps.Clone(style)})
	return previous, nil
}

func (e *MemoryElement) RestoreStyle(snapshot stepper.Style) error {
	e.surface.mu.Lock()
	if err := e.surface.faultLocked(e.id, OpRestoreStyle); err != nil {
		e.surface.mu.Unlock()
		return err
	}
	for property, value := range snapshot {
		e.put(property, value)
	}
	e.surface.unlock(Change{Element: e.id, Op: OpRestoreStyle, Style: maps.Clone(snapshot)})
	return nil
}

func (e *MemoryElement) Unmount() error {
	e.surface.mu.Lock()
	e.mounted = false
	e.surface.unlock(Change{Element: e.id, Op: OpUnmount})
	return nil
}

func (e *MemoryElement) put(property, value string) {
	if value == "" {
		delete(e.style, property)
		return
	}
	e.style[property] = value
}

func (e *MemoryElement) ID() stepper.ElementID {
	return e.id
}

func (e *MemoryElement) Content() any {
	e.surface.mu.Lock()
	defer e.surface.mu.Unlock()
	return e.content
}

func (e *MemoryElement) Classes() []string {
	e.surface.mu.Lock()
	defer e.surface.mu.Unlock()
	return e.classes.Slice()
}

func (e *MemoryElement) HasClass(class string) bool {
	e.surface.mu.Lock()
	defer e.surface.mu.Unlock()
	return e.classes.Contains(class)
}

func (e *MemoryElement) Style() stepper.Style {
	e.surface.mu.Lock()
	defer e.surface.mu.Unlock()
	return maps.Clone(e.style)
}

func (e *MemoryElement) Mounted() bool {
	e.surface.mu.Lock()
	defer e.surface.mu.Unlock()
	return e.mounted
}
