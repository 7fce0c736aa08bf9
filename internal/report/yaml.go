package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// EncodeYAML writes reports as a YAML stream, one document per report.
func EncodeYAML(w io.Writer, reports ...*Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report for %s: %w", r.Path, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing yaml: %w", err)
	}
	return nil
}
