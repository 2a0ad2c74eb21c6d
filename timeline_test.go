package stepper_test

import (
	"testing"
	"time"

	stepper "github.com/stateforward/go-stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	ms := time.Millisecond
	planned := stepper.Plan([]stepper.Step{
		{
			Elements: []stepper.ElementID{"a", "b"},
			Duration: 100 * ms,
			PreDelay: 10 * ms,
			Configs: map[stepper.ElementID]stepper.Config{
				"a": {Style: stepper.Style{"animation": "fade"}, Classes: []string{"big"}},
				"b": {Delay: 40 * ms},
			},
		},
		{
			Elements:  []stepper.ElementID{"a"},
			Duration:  200 * ms,
			PostDelay: 300 * ms,
		},
	}, 50*ms)
	require.Len(t, planned, 2)

	first := planned[0]
	assert.Equal(t, time.Duration(0), first.Start)
	assert.Equal(t, 150*ms, first.Join)
	assert.Equal(t, 200*ms, first.End)
	assert.Equal(t, []stepper.Window{
		{Element: "a", Start: 10 * ms, End: 110 * ms, Label: "fade .big"},
		{Element: "b", Start: 50 * ms, End: 150 * ms},
	}, first.Windows)

	second := planned[1]
	assert.Equal(t, 200*ms, second.Start)
	assert.Equal(t, 400*ms, second.Join)
	assert.Equal(t, 700*ms, second.End)
}

func TestEffectiveStyle(t *testing.T) {
	style := stepper.EffectiveStyle(1500*time.Millisecond, stepper.Style{
		"animation":          "fade-out-up",
		"animation-duration": "9s",
		"opacity":            "0.5",
	})
	assert.Equal(t, stepper.Style{
		"animation-name":            "fade-out-up",
		"animation-duration":        "1500ms",
		"animation-iteration-count": "1",
		"animation-fill-mode":       "forwards",
		"opacity":                   "0.5",
	}, style)

	// user values override the defaults
	style = stepper.EffectiveStyle(0, stepper.Style{"animation-fill-mode": "none"})
	assert.Equal(t, "none", style["animation-fill-mode"])
	assert.Equal(t, "0ms", style[stepper.AnimationDuration])

	// an explicit name beats the shorthand whatever the map order
	for range 20 {
		style = stepper.EffectiveStyle(time.Second, stepper.Style{
			"animation":      "shorthand",
			"animation-name": "explicit",
		})
		assert.Equal(t, "explicit", style[stepper.AnimationName])
		assert.NotContains(t, style, "animation")
	}
}

func TestStepConfigFor(t *testing.T) {
	shared := stepper.Step{Config: &stepper.Config{Classes: []string{"x"}}}
	config, ok := shared.ConfigFor("any")
	require.True(t, ok)
	config.Classes[0] = "changed"
	assert.Equal(t, "x", shared.Config.Classes[0])

	perElement := stepper.Step{Configs: map[stepper.ElementID]stepper.Config{"a": {}}}
	_, ok = perElement.ConfigFor("b")
	assert.False(t, ok)
	assert.True(t, perElement.PerElement())

	_, ok = stepper.Step{}.ConfigFor("a")
	assert.False(t, ok)
}
