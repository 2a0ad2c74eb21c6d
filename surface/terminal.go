package surface

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	stepper "github.com/stateforward/go-stepper"
)

// Styles are the lipgloss styles used by the terminal surface.
type Styles struct {
	Time    lipgloss.Style
	Element lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
	Style   lipgloss.Style
	Muted   lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Time:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Element: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Removed: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Style:   lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// PlainStyles renders text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Time: plain, Element: plain, Added: plain, Removed: plain, Style: plain, Muted: plain}
}

// Terminal is a Memory surface that prints every change as a line of text.
type Terminal struct {
	*Memory
	styles Styles
	start  time.Time
	width  int

	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	t := &Terminal{
		Memory: NewMemory(),
		styles: DefaultStyles(),
		start:  time.Now(),
		width:  10,
		out:    out,
	}
	t.Observe(t.print)
	return t
}

// WithStyles replaces the styles, for example with plain ones for tests.
func (t *Terminal) WithStyles(styles Styles) *Terminal {
	t.styles = styles
	return t
}

func (t *Terminal) print(change Change) {
	var detail string
	switch change.Op {
	case OpAddClasses:
		if len(change.Classes) == 0 {
			return
		}
		detail = t.styles.Added.Render("+" + strings.Join(change.Classes, " +"))
	case OpRemoveClasses:
		if len(change.Classes) == 0 {
			return
		}
		detail = t.styles.Removed.Render("-" + strings.Join(change.Classes, " -"))
	case OpSetStyle:
		detail = t.styles.Style.Render(formatStyle(change.Style))
	case OpRestoreStyle:
		detail = t.styles.Muted.Render("restore " + formatStyle(change.Style))
	case OpRender:
		detail = t.styles.Muted.Render(fmt.Sprintf("render %v", change.Content))
	default:
		detail = t.styles.Muted.Render(string(change.Op))
	}
	elapsed := change.At.Sub(t.start).Seconds()
	line := fmt.Sprintf("%s  %s  %s\n",
		t.styles.Time.Render(fmt.Sprintf("%7.3fs", elapsed)),
		t.styles.Element.Render(fmt.Sprintf("%-*s", t.width, change.Element)),
		detail,
	)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, line)
}

// Summary renders the final classes and style of every element.
func (t *Terminal) Summary() string {
	t.Memory.mu.Lock()
	ids := slices.Sorted(maps.Keys(t.Memory.elements))
	t.Memory.mu.Unlock()
	var b strings.Builder
	for _, id := range ids {
		element := t.Element(id)
		classes := element.Classes()
		fmt.Fprintf(&b, "%s  classes=[%s]  %s\n",
			t.styles.Element.Render(fmt.Sprintf("%-*s", t.width, id)),
			strings.Join(classes, " "),
			t.styles.Style.Render(formatStyle(element.Style())),
		)
	}
	return b.String()
}

func formatStyle(style stepper.Style) string {
	parts := make([]string, 0, len(style))
	for _, property := range slices.Sorted(maps.Keys(style)) {
		value := style[property]
		if value == "" {
			value = "unset"
		}
		parts = append(parts, property+"="+value)
	}
	return strings.Join(parts, " ")
}
