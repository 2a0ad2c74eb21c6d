// Package plantuml renders step lists as PlantUML timing diagrams: one
// concise lane per element, one highlighted band per step.
package plantuml

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	stepper "github.com/stateforward/go-stepper"
)

const idle = "{-}"

func idFromElement(id stepper.ElementID) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, id)
}

func quote(label string) string {
	return `"` + strings.ReplaceAll(label, `"`, `'`) + `"`
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}

func generateLanes(builder *strings.Builder, planned []stepper.PlannedStep) []stepper.ElementID {
	lanes := []stepper.ElementID{}
	for _, step := range planned {
		for _, window := range step.Windows {
			if !slices.Contains(lanes, window.Element) {
				lanes = append(lanes, window.Element)
			}
		}
	}
	for _, lane := range lanes {
		fmt.Fprintf(builder, "concise %s as %s\n", quote(lane), idFromElement(lane))
	}
	return lanes
}

// generateChanges writes the state of every lane at every instant it
// changes. A window starting when another ends wins over the end.
func generateChanges(builder *strings.Builder, planned []stepper.PlannedStep, lanes []stepper.ElementID) {
	changes := map[int64]map[stepper.ElementID]string{}
	at := func(t int64) map[stepper.ElementID]string {
		if changes[t] == nil {
			changes[t] = map[stepper.ElementID]string{}
		}
		return changes[t]
	}
	for _, lane := range lanes {
		at(0)[lane] = idle
	}
	for _, step := range planned {
		for _, window := range step.Windows {
			end := at(ms(window.End))
			if _, ok := end[window.Element]; !ok {
				end[window.Element] = idle
			}
		}
	}
	for _, step := range planned {
		for _, window := range step.Windows {
			label := window.Label
			if label == "" {
				label = fmt.Sprintf("step %d", step.Index+1)
			}
			at(ms(window.Start))[window.Element] = quote(label)
		}
	}
	for _, t := range slices.Sorted(maps.Keys(changes)) {
		fmt.Fprintf(builder, "@%d\n", t)
		for _, lane := range lanes {
			if state, ok := changes[t][lane]; ok {
				fmt.Fprintf(builder, "%s is %s\n", idFromElement(lane), state)
			}
		}
	}
}

func generateSteps(builder *strings.Builder, planned []stepper.PlannedStep) {
	for _, step := range planned {
		if step.End <= step.Start {
			continue
		}
		fmt.Fprintf(builder, "highlight %d to %d : step %d\n", ms(step.Start), ms(step.End), step.Index+1)
	}
}

// Generate writes the nominal timeline of steps, played automatically with
// the given step gap, as a timing diagram named name.
func Generate(writer io.Writer, name string, steps []stepper.Step, gap time.Duration) error {
	var builder strings.Builder
	planned := stepper.Plan(steps, gap)
	fmt.Fprintf(&builder, "@startuml %s\n", idFromElement(name))
	lanes := generateLanes(&builder, planned)
	if len(lanes) > 0 {
		generateChanges(&builder, planned, lanes)
		generateSteps(&builder, planned)
	}
	fmt.Fprintln(&builder, "@enduml")
	_, err := writer.Write([]byte(builder.String()))
	return err
}
