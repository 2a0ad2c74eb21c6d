package stepper

import (
	"maps"
	"slices"
	"time"
)

// ElementID names an animation target. It is the key of Props.Components.
type ElementID = string

// Style maps CSS property names to values. An empty value means "unset".
type Style map[string]string

// Config holds the visual directives applied to one element for one step.
type Config struct {
	Classes []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	Style   Style    `json:"style,omitempty" yaml:"style,omitempty"`
	// KeepConfig leaves classes and style in place once the step completes.
	KeepConfig bool `json:"keepConfig,omitempty" yaml:"keepConfig,omitempty"`
	// RemovePrevAnimations reverts everything kept by earlier steps on the
	// element before this config is applied.
	RemovePrevAnimations bool `json:"removePrevAnimations,omitempty" yaml:"removePrevAnimations,omitempty"`
	// Delay postpones this element's visuals inside the step. The step still
	// waits for the delayed element.
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (c Config) clone() Config {
	c.Classes = slices.Clone(c.Classes)
	c.Style = maps.Clone(c.Style)
	return c
}

// Step is one synchronized phase of a sequence.
type Step struct {
	Elements []ElementID   `json:"elements"`
	Duration time.Duration `json:"duration"`
	// Config is shared by every element of the step. Ignored when Configs is set.
	Config *Config `json:"config,omitempty"`
	// Configs selects per-element mode. Elements without an entry get no
	// visual change but still take part in the step's timing.
	Configs   map[ElementID]Config `json:"configs,omitempty"`
	PreDelay  time.Duration        `json:"preDelay,omitempty"`
	PostDelay time.Duration        `json:"postDelay,omitempty"`
}

// ConfigFor resolves the config an element receives for this step.
func (s Step) ConfigFor(id ElementID) (*Config, bool) {
	if s.Configs != nil {
		config, ok := s.Configs[id]
		if !ok {
			return nil, false
		}
		return &config, true
	}
	if s.Config == nil {
		return nil, false
	}
	config := s.Config.clone()
	return &config, true
}

// PerElement reports whether the step carries one config per element.
func (s Step) PerElement() bool {
	return s.Configs != nil
}

// Clone returns a deep copy, so a run never shares state with the caller.
func (s Step) Clone() Step {
	s.Elements = slices.Clone(s.Elements)
	if s.Config != nil {
		config := s.Config.clone()
		s.Config = &config
	}
	if s.Configs != nil {
		configs := make(map[ElementID]Config, len(s.Configs))
		for id, config := range s.Configs {
			configs[id] = config.clone()
		}
		s.Configs = configs
	}
	return s
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}

// Props is everything a host supplies to a Sequencer, at construction and on
// every Update.
type Props struct {
	Steps      []Step
	Components map[ElementID]any
	// ReloadOnStepsChange restarts the sequence when Steps changes.
	ReloadOnStepsChange bool
	// Update is an arbitrary token. Any structural change restarts the sequence.
	Update any
	// ManualSteps hands step consumption to Handle.Advance.
	ManualSteps bool
	// Paused holds automatic playback. Clearing it resumes the remaining steps.
	Paused bool
	// Handle is bound to the sequencer in manual mode. Required when
	// ManualSteps is set.
	Handle  *Handle
	OnEnd   func()
	OnError func(error)
}

func (p Props) validate() error {
	if p.ManualSteps && p.Handle == nil {
		return &ConfigurationError{Reason: "manual steps require a Handle"}
	}
	return nil
}

func (p Props) clone() Props {
	p.Steps = cloneSteps(p.Steps)
	p.Components = maps.Clone(p.Components)
	return p
}

// Surface is the host collaborator that owns visuals. The sequencer mounts one
// Element per component and never touches rendering directly.
type Surface interface {
	Mount(id ElementID) (Element, error)
}

// Element is a mounted animation target.
type Element interface {
	// Render replaces the element's content.
	Render(content any) error
	// AddClasses applies classes and returns the ones that were not present.
	AddClasses(classes []string) ([]string, error)
	RemoveClasses(classes []string) error
	// SetStyle applies style and returns the previous values of the touched
	// properties, "" for properties that were unset.
	SetStyle(style Style) (Style, error)
	// RestoreStyle puts back a snapshot returned by SetStyle.
	RestoreStyle(snapshot Style) error
}

// Unmounter is implemented by elements that need cleanup when their agent is
// discarded.
type Unmounter interface {
	Unmount() error
}
