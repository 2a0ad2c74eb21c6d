// Package cli implements the animstep command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/stateforward/go-stepper/clock"
)

var (
	logLevel string
	speed    float64
)

var rootCmd = &cobra.Command{
	Use:           "animstep",
	Short:         "Play and inspect animation step sequences",
	Long:          "Play step sequences from YAML files on a terminal surface, or export their timeline as a PlantUML timing diagram.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&speed, "speed", 1, "playback speed multiplier")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func newClock() (clock.Clock, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %v", speed)
	}
	return clock.Make(clock.Config{Speed: speed}), nil
}
