package stepper

import (
	"strings"
	"time"
)

// Window is the span during which one element shows one step's config.
type Window struct {
	Element ElementID
	Start   time.Duration
	End     time.Duration
	Label   string
}

// PlannedStep is the nominal schedule of one step, measured from the start of
// the sequence. End includes the post-delay or step gap.
type PlannedStep struct {
	Index   int
	Start   time.Duration
	Join    time.Duration
	End     time.Duration
	Windows []Window
}

// Plan computes the best-effort schedule of steps played automatically with
// the given step gap. Real runs only ever take longer.
func Plan(steps []Step, gap time.Duration) []PlannedStep {
	planned := make([]PlannedStep, 0, len(steps))
	var cursor time.Duration
	for i, step := range steps {
		p := PlannedStep{Index: i, Start: cursor}
		begin := cursor + step.PreDelay
		p.Join = begin
		for _, id := range step.Elements {
			config, _ := step.ConfigFor(id)
			start := begin
			if config != nil {
				start += config.Delay
			}
			window := Window{
				Element: id,
				Start:   start,
				End:     start + step.Duration,
				Label:   label(config),
			}
			p.Join = max(p.Join, window.End)
			p.Windows = append(p.Windows, window)
		}
		p.End = p.Join + gap
		if step.PostDelay > 0 {
			p.End = p.Join + step.PostDelay
		}
		cursor = p.End
		planned = append(planned, p)
	}
	return planned
}

func label(config *Config) string {
	if config == nil {
		return ""
	}
	parts := make([]string, 0, len(config.Classes)+1)
	if name, ok := config.Style[AnimationProperty]; ok {
		parts = append(parts, name)
	} else if name, ok := config.Style[AnimationName]; ok {
		parts = append(parts, name)
	}
	for _, class := range config.Classes {
		parts = append(parts, "."+class)
	}
	return strings.Join(parts, " ")
}
