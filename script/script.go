// Package script reads step lists from YAML or JSON documents.
//
// A document names its components and steps:
//
//	components:
//	  first: First card
//	  second: Second card
//	steps:
//	  - elements: [first, second]
//	    duration: 2000
//	    config:
//	      style: {animation: fade-out-up}
//	      keepConfig: true
//	  - elements: [first, second]
//	    config:
//	      first: {classes: bounce}
//	      second: {style: {animation: fade-in-down}}
//
// Durations and delays are milliseconds. A config mapping that uses none of
// the config keys is read as one config per element.
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	stepper "github.com/stateforward/go-stepper"
	"gopkg.in/yaml.v3"
)

var configKeys = []string{"classes", "style", "styles", "keepConfig", "removePrevAnimations", "delay"}

// Millis is a duration written as a number of milliseconds.
type Millis int64

func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Classes accepts a single class name or a list of them.
type Classes []string

func (c *Classes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var class string
		if err := node.Decode(&class); err != nil {
			return err
		}
		*c = Classes{class}
		return nil
	case yaml.SequenceNode:
		var classes []string
		if err := node.Decode(&classes); err != nil {
			return err
		}
		*c = classes
		return nil
	}
	return fmt.Errorf("line %d: classes must be a string or a list of strings", node.Line)
}

type Config struct {
	Classes              Classes           `yaml:"classes"`
	Style                map[string]string `yaml:"style"`
	Styles               map[string]string `yaml:"styles"`
	KeepConfig           bool              `yaml:"keepConfig"`
	RemovePrevAnimations bool              `yaml:"removePrevAnimations"`
	Delay                Millis            `yaml:"delay"`
}

func (c Config) config() stepper.Config {
	var style stepper.Style
	if len(c.Style)+len(c.Styles) > 0 {
		style = stepper.Style{}
		for property, value := range c.Styles {
			style[property] = value
		}
		for property, value := range c.Style {
			style[property] = value
		}
	}
	return stepper.Config{
		Classes:              slices.Clone(c.Classes),
		Style:                style,
		KeepConfig:           c.KeepConfig,
		RemovePrevAnimations: c.RemovePrevAnimations,
		Delay:                c.Delay.Duration(),
	}
}

type Step struct {
	Elements  []string  `yaml:"elements"`
	Duration  *Millis   `yaml:"duration"`
	PreDelay  Millis    `yaml:"preDelay"`
	PostDelay Millis    `yaml:"postDelay"`
	Config    yaml.Node `yaml:"config"`
}

type Document struct {
	Name                string         `yaml:"name"`
	ManualSteps         bool           `yaml:"manualSteps"`
	ReloadOnStepsChange bool           `yaml:"reloadOnStepsChange"`
	Components          map[string]any `yaml:"components"`
	Steps               []Step         `yaml:"steps"`
}

func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Sequence converts the document's steps into engine steps.
func (d *Document) Sequence() ([]stepper.Step, error) {
	steps := make([]stepper.Step, 0, len(d.Steps))
	for i, raw := range d.Steps {
		step, err := raw.step()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Props builds sequencer props from the document. The handle is only used
// when the document asks for manual steps.
func (d *Document) Props(handle *stepper.Handle) (stepper.Props, error) {
	steps, err := d.Sequence()
	if err != nil {
		return stepper.Props{}, err
	}
	components := make(map[stepper.ElementID]any, len(d.Components))
	for id, content := range d.Components {
		components[id] = content
	}
	props := stepper.Props{
		Steps:               steps,
		Components:          components,
		ReloadOnStepsChange: d.ReloadOnStepsChange,
		ManualSteps:         d.ManualSteps,
	}
	if d.ManualSteps {
		props.Handle = handle
	}
	return props, nil
}

func (s Step) step() (stepper.Step, error) {
	duration := stepper.DefaultDuration
	if s.Duration != nil {
		duration = s.Duration.Duration()
	}
	if duration < 0 || s.PreDelay < 0 || s.PostDelay < 0 {
		return stepper.Step{}, errors.New("durations and delays must not be negative")
	}
	seen := make(map[string]struct{}, len(s.Elements))
	for _, id := range s.Elements {
		if _, ok := seen[id]; ok {
			return stepper.Step{}, fmt.Errorf("element %q listed twice", id)
		}
		seen[id] = struct{}{}
	}
	step := stepper.Step{
		Elements:  slices.Clone(s.Elements),
		Duration:  duration,
		PreDelay:  s.PreDelay.Duration(),
		PostDelay: s.PostDelay.Duration(),
	}
	if s.Config.Kind == 0 {
		return step, nil
	}
	if s.Config.Kind != yaml.MappingNode {
		return stepper.Step{}, fmt.Errorf("line %d: config must be a mapping", s.Config.Line)
	}
	if perElement(&s.Config) {
		var configs map[string]Config
		if err := s.Config.Decode(&configs); err != nil {
			return stepper.Step{}, fmt.Errorf("per-element config: %w", err)
		}
		step.Configs = make(map[stepper.ElementID]stepper.Config, len(configs))
		for id, config := range configs {
			step.Configs[id] = config.config()
		}
		return step, nil
	}
	if err := knownKeys(&s.Config); err != nil {
		return stepper.Step{}, err
	}
	var config Config
	if err := s.Config.Decode(&config); err != nil {
		return stepper.Step{}, fmt.Errorf("config: %w", err)
	}
	shared := config.config()
	step.Config = &shared
	return step, nil
}

// perElement reports whether a config mapping is keyed by element ids: it
// is non-empty and uses none of the config keys.
func perElement(node *yaml.Node) bool {
	if len(node.Content) == 0 {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if slices.Contains(configKeys, node.Content[i].Value) {
			return false
		}
	}
	return true
}

func knownKeys(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(configKeys, key.Value) {
			return fmt.Errorf("line %d: unknown config key %q", key.Line, key.Value)
		}
	}
	return nil
}
