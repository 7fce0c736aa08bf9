package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/cellanalyser/internal/format"
)

const starterHeader = "# Starter model: dx/dt = 1 with x(0) = 1 over time t.\n" +
	"# Analyse it with: cellanalyser %s\n"

const starterMath = `<math xmlns="http://www.w3.org/1998/Math/MathML" xmlns:cellml="http://www.cellml.org/cellml/2.0#">
  <apply><eq/>
    <apply><diff/><bvar><ci>t</ci></bvar><ci>x</ci></apply>
    <cn cellml:units="per_second">1</cn>
  </apply>
</math>
`

// newInitCommand implements `cellanalyser init`, which writes a starter YAML
// model that analyses cleanly as an ODE.
func newInitCommand(stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [flags] [path]",
		Short: "Write a starter YAML model",
		Long: `Write a starter YAML model to path (default ./model.yaml). The model has one
state variable x with dx/dt = 1 and x(0) = 1, integrated over time t, and is a
template for new models. An existing file is left untouched unless --force is
given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "model.yaml"
			if len(args) > 0 {
				path = args[0]
			}

			content, err := generateStarter(path)
			if err != nil {
				return err
			}

			if dryRun {
				_, _ = io.WriteString(stdout, content)
				return nil
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("checking %s: %w", path, err)
				}
			}

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote starter model to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the model instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// starterDocument returns the starter model.
func starterDocument() *format.Document {
	return &format.Document{
		Name: "starter",
		Units: []format.UnitsDocument{{
			Name:  "per_second",
			Units: []format.UnitDocument{{Reference: "second", Exponent: -1}},
		}},
		Components: []format.ComponentDocument{{
			Name: "main",
			Variables: []format.VariableDocument{
				{Name: "t", Units: "second"},
				{Name: "x", Units: "dimensionless", InitialValue: "1"},
			},
			Math: starterMath,
		}},
	}
}

// generateStarter renders the starter model as YAML with a header comment
// naming path.
func generateStarter(path string) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, starterHeader, path)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(starterDocument()); err != nil {
		return "", fmt.Errorf("encoding starter model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding starter model: %w", err)
	}
	return buf.String(), nil
}
