package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
)

// Supported report formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidFormat reports whether format names a supported output format.
func ValidFormat(format string) bool {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// WriteJSON writes reports as indented JSON. A single report is written as an
// object, several as an array.
func WriteJSON(w io.Writer, reports ...*analyzer.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	var v any = reports
	if len(reports) == 1 {
		v = reports[0]
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// WriteYAML writes reports as YAML documents, one per report.
func WriteYAML(w io.Writer, reports ...*analyzer.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush yaml: %w", err)
	}
	return nil
}
