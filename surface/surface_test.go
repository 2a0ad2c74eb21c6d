package surface_test

import (
	"bytes"
	"errors"
	"testing"

	stepper "github.com/stateforward/go-stepper"
	"github.com/stateforward/go-stepper/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStyleRoundTrip(t *testing.T) {
	m := surface.NewMemory()
	el, err := m.Mount("a")
	require.NoError(t, err)
	element := m.Element("a")

	_, err = el.SetStyle(stepper.Style{"opacity": "0.5"})
	require.NoError(t, err)
	before := element.Style()

	snapshot, err := el.SetStyle(stepper.Style{"opacity": "1", "color": "red"})
	require.NoError(t, err)
	assert.Equal(t, stepper.Style{"opacity": "0.5", "color": ""}, snapshot)
	assert.Equal(t, stepper.Style{"opacity": "1", "color": "red"}, element.Style())

	require.NoError(t, el.RestoreStyle(snapshot))
	assert.Equal(t, before, element.Style())
}

func TestMemoryClasses(t *testing.T) {
	m := surface.NewMemory()
	el, err := m.Mount("a")
	require.NoError(t, err)

	added, err := el.AddClasses([]string{"fade", "spin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fade", "spin"}, added)

	added, err = el.AddClasses([]string{"spin", "grow"})
	require.NoError(t, err)
	assert.Equal(t, []string{"grow"}, added)

	require.NoError(t, el.RemoveClasses([]string{"fade", "missing"}))
	assert.Equal(t, []string{"spin", "grow"}, m.Element("a").Classes())
	assert.True(t, m.Element("a").HasClass("grow"))

	removals := m.Changes("a", surface.OpRemoveClasses)
	require.Len(t, removals, 1)
	assert.Equal(t, []string{"fade"}, removals[0].Classes)
}

func TestMemoryFault(t *testing.T) {
	boom := errors.New("boom")
	m := surface.NewMemory()
	m.Fail(func(id stepper.ElementID, op surface.Op) error {
		if id == "b" && op == surface.OpMount {
			return boom
		}
		if op == surface.OpSetStyle {
			return boom
		}
		return nil
	})

	_, err := m.Mount("b")
	require.ErrorIs(t, err, boom)

	el, err := m.Mount("a")
	require.NoError(t, err)
	_, err = el.SetStyle(stepper.Style{"opacity": "1"})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, m.Element("a").Style())
}

func TestMemoryRenderAndUnmount(t *testing.T) {
	m := surface.NewMemory()
	var seen []surface.Op
	m.Observe(func(change surface.Change) {
		seen = append(seen, change.Op)
	})
	el, err := m.Mount("a")
	require.NoError(t, err)
	require.NoError(t, el.Render("hello"))
	assert.Equal(t, "hello", m.Element("a").Content())
	require.NoError(t, el.(stepper.Unmounter).Unmount())
	assert.False(t, m.Element("a").Mounted())
	assert.Equal(t, []surface.Op{surface.OpMount, surface.OpRender, surface.OpUnmount}, seen)
	assert.Len(t, m.History(), 3)
}

func TestTerminal(t *testing.T) {
	var out bytes.Buffer
	term := surface.NewTerminal(&out).WithStyles(surface.PlainStyles())
	el, err := term.Mount("first")
	require.NoError(t, err)
	_, err = el.AddClasses([]string{"fade"})
	require.NoError(t, err)
	_, err = el.SetStyle(stepper.Style{"animation-name": "slide"})
	require.NoError(t, err)
	require.NoError(t, el.RemoveClasses([]string{"fade"}))

	printed := out.String()
	assert.Contains(t, printed, "first")
	assert.Contains(t, printed, "+fade")
	assert.Contains(t, printed, "animation-name=slide")
	assert.Contains(t, printed, "-fade")

	summary := term.Summary()
	assert.Contains(t, summary, "classes=[]")
	assert.Contains(t, summary, "animation-name=slide")
}
