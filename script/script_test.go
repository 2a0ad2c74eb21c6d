package script_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	stepper "github.com/stateforward/go-stepper"
	"github.com/stateforward/go-stepper/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demo = `
name: demo
components:
  first: First card
  second: Second card
steps:
  - elements: [first, second]
    duration: 2000
    preDelay: 10
    config:
      style:
        animation: fade-out-up
        opacity: 0.5
      keepConfig: true
  - elements: [first, second]
    postDelay: 250
    config:
      first:
        classes: bounce
      second:
        classes: [spin, grow]
        delay: 300
  - elements: [second]
    config: {}
  - elements: [first]
`

func load(t *testing.T, text string) *script.Document {
	t.Helper()
	doc, err := script.Load(strings.NewReader(text))
	require.NoError(t, err)
	return doc
}

func TestSequence(t *testing.T) {
	doc := load(t, demo)
	assert.Equal(t, "demo", doc.Name)
	steps, err := doc.Sequence()
	require.NoError(t, err)
	require.Len(t, steps, 4)

	t.Run("shared config", func(t *testing.T) {
		step := steps[0]
		assert.Equal(t, []stepper.ElementID{"first", "second"}, step.Elements)
		assert.Equal(t, 2*time.Second, step.Duration)
		assert.Equal(t, 10*time.Millisecond, step.PreDelay)
		require.NotNil(t, step.Config)
		assert.False(t, step.PerElement())
		assert.Equal(t, stepper.Style{"animation": "fade-out-up", "opacity": "0.5"}, step.Config.Style)
		assert.True(t, step.Config.KeepConfig)
	})

	t.Run("per-element config", func(t *testing.T) {
		step := steps[1]
		assert.True(t, step.PerElement())
		assert.Equal(t, stepper.DefaultDuration, step.Duration)
		assert.Equal(t, 250*time.Millisecond, step.PostDelay)
		first, ok := step.ConfigFor("first")
		require.True(t, ok)
		assert.Equal(t, []string{"bounce"}, first.Classes)
		second, ok := step.ConfigFor("second")
		require.True(t, ok)
		assert.Equal(t, []string{"spin", "grow"}, second.Classes)
		assert.Equal(t, 300*time.Millisecond, second.Delay)
	})

	t.Run("empty config is shared", func(t *testing.T) {
		require.NotNil(t, steps[2].Config)
		assert.False(t, steps[2].PerElement())
	})

	t.Run("missing config", func(t *testing.T) {
		assert.Nil(t, steps[3].Config)
		assert.Nil(t, steps[3].Configs)
	})
}

func TestProps(t *testing.T) {
	handle := stepper.NewHandle()

	props, err := load(t, demo).Props(handle)
	require.NoError(t, err)
	assert.Nil(t, props.Handle)
	assert.False(t, props.ManualSteps)
	assert.Equal(t, "First card", props.Components["first"])
	assert.Len(t, props.Steps, 4)

	props, err = load(t, "manualSteps: true\nsteps: []\n").Props(handle)
	require.NoError(t, err)
	assert.True(t, props.ManualSteps)
	assert.Same(t, handle, props.Handle)
}

func TestStylesAlias(t *testing.T) {
	doc := load(t, `
steps:
  - elements: [a]
    config:
      styles: {animation: spin, color: red}
      style: {color: blue}
`)
	steps, err := doc.Sequence()
	require.NoError(t, err)
	assert.Equal(t, stepper.Style{"animation": "spin", "color": "blue"}, steps[0].Config.Style)
}

func TestErrors(t *testing.T) {
	for name, text := range map[string]string{
		"negative duration": "steps:\n  - elements: [a]\n    duration: -1\n",
		"duplicate element": "steps:\n  - elements: [a, a]\n",
		"config not a map":  "steps:\n  - elements: [a]\n    config: [fade]\n",
		"unknown key":       "steps:\n  - elements: [a]\n    config: {classes: x, colour: red}\n",
		"bad classes":       "steps:\n  - elements: [a]\n    config: {classes: {a: b}}\n",
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := script.Load(strings.NewReader(text))
			if err != nil {
				return
			}
			_, err = doc.Sequence()
			assert.Error(t, err)
		})
	}

	_, err := script.Load(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0o644))
	doc, err := script.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Steps, 4)

	_, err = script.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
