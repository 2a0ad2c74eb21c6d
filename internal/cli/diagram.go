package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	stepper "github.com/stateforward/go-stepper"
	"github.com/stateforward/go-stepper/pkg/plantuml"
	"github.com/stateforward/go-stepper/script"
)

var diagramOutput string

func init() {
	rootCmd.AddCommand(diagramCmd)

	diagramCmd.Flags().StringVarP(&diagramOutput, "output", "o", "", "write the diagram to a file instead of stdout")
}

var diagramCmd = &cobra.Command{
	Use:   "diagram FILE",
	Short: "Export a PlantUML timing diagram",
	Long:  "Export the nominal timeline of a step sequence, played automatically, as a PlantUML timing diagram.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		doc, err := script.LoadFile(path)
		if err != nil {
			return err
		}
		steps, err := doc.Sequence()
		if err != nil {
			return err
		}
		name := doc.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		w := cmd.OutOrStdout()
		if diagramOutput != "" {
			f, err := os.Create(diagramOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return plantuml.Generate(w, name, steps, stepper.DefaultStepGap)
	},
}
