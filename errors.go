package stepper

import (
	"errors"
	"fmt"
)

var (
	// ErrAgentBusy is returned when a step is assigned to an element that is
	// still initialized or executing a previous one.
	ErrAgentBusy   = errors.New("element is already executing a step")
	ErrAgentClosed = errors.New("element agent is closed")
	ErrClosed      = errors.New("sequencer is closed")
	ErrStarted     = errors.New("sequencer already started")
	ErrUnbound     = errors.New("handle is not bound to a sequencer")
	ErrNotManual   = errors.New("sequencer is not in manual mode")
)

// ConfigurationError reports props that cannot be run. It is fatal and
// surfaced before any step executes.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid stepper configuration: %s", e.Reason)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
