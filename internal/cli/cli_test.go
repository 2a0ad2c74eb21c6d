package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	logLevel, speed = "warn", 1
	playManual, playPlain = false, false
	diagramOutput = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlay(t *testing.T) {
	out, err := execute(t, "", "play", "testdata/demo.yaml", "--speed", "100", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "animation-name=fade-in-down")
	assert.Contains(t, out, "+bounce")
	assert.Contains(t, out, "+shake")
	assert.Contains(t, out, "-bounce")
	// the summary shows what the last step kept
	summary := out[strings.LastIndex(out, "\n\n"):]
	assert.Contains(t, summary, "animation-name=fade-out-up")
}

func TestPlayManual(t *testing.T) {
	out, err := execute(t, "\n\nq\n", "play", "testdata/demo.yaml", "--speed", "100", "--plain", "--manual")
	require.NoError(t, err)
	assert.Contains(t, out, "3 steps")
	assert.Contains(t, out, "+bounce")
	assert.NotContains(t, out, "fade-out-up")
}

func TestPlayErrors(t *testing.T) {
	_, err := execute(t, "", "play", "testdata/missing.yaml")
	assert.Error(t, err)

	_, err = execute(t, "", "play", "testdata/demo.yaml", "--speed", "0")
	assert.Error(t, err)

	_, err = execute(t, "", "play", "testdata/demo.yaml", "--log-level", "loud")
	assert.Error(t, err)
}

func TestDiagram(t *testing.T) {
	out, err := execute(t, "", "diagram", "testdata/demo.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "@startuml demo\n"))
	assert.Contains(t, out, `first is "fade-in-down"`)
	assert.Contains(t, out, `second is ".shake"`)
	assert.Contains(t, out, "highlight 0 to 2050 : step 1")

	path := filepath.Join(t.TempDir(), "demo.puml")
	out, err = execute(t, "", "diagram", "testdata/demo.yaml", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "@enduml")
}
