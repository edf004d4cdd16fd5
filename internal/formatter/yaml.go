package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatTools(tools []ToolEntry) (string, error) {
	data, err := yaml.Marshal(tools)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatTool(tool *ToolEntry) (string, error) {
	if tool == nil {
		return "null", nil
	}
	data, err := yaml.Marshal(tool)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
