package stepper

import (
	"context"
	"sync"
)

// Handle is the host's control for manual mode. Pass it in Props.Handle; the
// sequencer binds it when a manual run is mounted.
type Handle struct {
	mu        sync.RWMutex
	sequencer *Sequencer
}

func NewHandle() *Handle {
	return &Handle{}
}

// Advance executes the front-most remaining step and removes it from the
// queue. It reports false without error when there is nothing to run or a
// previous Advance is still in flight.
func (h *Handle) Advance(ctx context.Context) (bool, error) {
	h.mu.RLock()
	sequencer := h.sequencer
	h.mu.RUnlock()
	if sequencer == nil {
		return false, ErrUnbound
	}
	return sequencer.Advance(ctx)
}

// Remaining returns the number of steps not yet consumed.
func (h *Handle) Remaining() int {
	h.mu.RLock()
	sequencer := h.sequencer
	h.mu.RUnlock()
	if sequencer == nil {
		return 0
	}
	return sequencer.Remaining()
}

func (h *Handle) bind(sequencer *Sequencer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sequencer = sequencer
}

func (h *Handle) unbind(sequencer *Sequencer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sequencer == sequencer {
		h.sequencer = nil
	}
}
