package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	stepper "github.com/stateforward/go-stepper"
	"github.com/stateforward/go-stepper/pkg/telemetry"
	"github.com/stateforward/go-stepper/script"
	"github.com/stateforward/go-stepper/surface"
)

var (
	playManual bool
	playPlain  bool
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().BoolVar(&playManual, "manual", false, "advance one step per line read from stdin")
	playCmd.Flags().BoolVar(&playPlain, "plain", false, "print without colors")
}

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a step sequence",
	Long:  "Play a step sequence on a terminal surface that prints every class and style change. In manual mode each line read from stdin advances one step; q quits.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd, args[0])
	},
}

func runPlay(cmd *cobra.Command, path string) error {
	doc, err := script.LoadFile(path)
	if err != nil {
		return err
	}
	if playManual {
		doc.ManualSteps = true
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	clk, err := newClock()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	term := surface.NewTerminal(out)
	if playPlain {
		term.WithStyles(surface.PlainStyles())
	}

	handle := stepper.NewHandle()
	props, err := doc.Props(handle)
	if err != nil {
		return err
	}
	ended := make(chan struct{})
	failed := make(chan error, 1)
	props.OnEnd = func() { close(ended) }
	props.OnError = func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	sequencer, err := stepper.New(term, props,
		stepper.WithClock(clk),
		stepper.WithLogger(logger),
		stepper.WithTracer(telemetry.Global()),
	)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := sequencer.Start(ctx); err != nil {
		_ = sequencer.Close()
		return err
	}

	switch {
	case props.ManualSteps:
		err = advance(ctx, cmd.InOrStdin(), out, handle)
	case len(props.Steps) == 0:
	default:
		select {
		case <-ended:
		case err = <-failed:
		case <-ctx.Done():
		}
	}
	err = errors.Join(err, sequencer.Close())
	fmt.Fprintf(out, "\n%s", term.Summary())
	return err
}

// advance runs one step per line of input until the steps run out, the
// input ends or a line reads q.
func advance(ctx context.Context, in io.Reader, out io.Writer, handle *stepper.Handle) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	fmt.Fprintf(out, "%d steps, press enter to advance, q to quit\n", handle.Remaining())
	for handle.Remaining() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "q" {
				return nil
			}
			if _, err := handle.Advance(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
