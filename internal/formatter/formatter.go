package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/toolbridge/internal/model/contract"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ToolEntry is one catalogue row together with the server that offers it.
type ToolEntry struct {
	Server      string         `json:"server" yaml:"server"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

type ToolFormatter interface {
	FormatTools([]ToolEntry) (string, error)
	FormatTool(*ToolEntry) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (ToolFormatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

// Parameters lists the schema's property names in order, required ones
// suffixed with "*".
func (e ToolEntry) Parameters() []string {
	props, _ := e.InputSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	switch req := e.InputSchema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if required[name] {
			names[i] = name + "*"
		}
	}
	return names
}

// EntriesFrom pairs each catalogue descriptor with its owning server.
func EntriesFrom(descs []contract.ToolDescriptor, owner func(name string) string) []ToolEntry {
	entries := make([]ToolEntry, 0, len(descs))
	for _, d := range descs {
		entry := ToolEntry{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
		if owner != nil {
			entry.Server = owner(d.Name)
		}
		entries = append(entries, entry)
	}
	return entries
}
