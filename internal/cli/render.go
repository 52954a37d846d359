package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	accent = lipgloss.Color("#D97706")
	dim    = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(16)
	valueStyle = lipgloss.NewStyle().Bold(true)
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeStructured encodes v as JSON or YAML. It returns false for the text format.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case formatText, "":
		return false, nil
	}
	return true, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

func writeRow(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+valueStyle.Render(value))
}
