package formatter

import (
	"encoding/json"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatTools(tools []ToolEntry) (string, error) {
	if tools == nil {
		tools = []ToolEntry{}
	}
	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatTool(tool *ToolEntry) (string, error) {
	if tool == nil {
		return "null", nil
	}
	data, err := json.MarshalIndent(tool, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
