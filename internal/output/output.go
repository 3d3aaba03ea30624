package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mpratt27/winsight/internal/model"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's
// --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// Writer is where results go; tests redirect it.
var Writer io.Writer = os.Stdout

// ListResult is the top-level output of the `list` command.
type ListResult struct {
	TS      int64                `yaml:"ts"                json:"ts"`
	Apps    []model.App          `yaml:"apps,omitempty"    json:"apps,omitempty"`
	Windows []model.WindowRecord `yaml:"windows,omitempty" json:"windows,omitempty"`
}

// Print serializes v in the current output format.
func Print(v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		if PrettyOutput {
			return PrintPrettyJSON(v)
		}
		return PrintJSON(v)
	case FormatYAML:
		return PrintYAML(v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// PrintJSON serializes v as compact single-line JSON.
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// PrintPrettyJSON serializes v as indented JSON.
func PrintPrettyJSON(v interface{}) error {
	enc := json.NewEncoder(Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// PrintYAML serializes v as YAML.
func PrintYAML(v interface{}) error {
	enc := yaml.NewEncoder(Writer)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}
