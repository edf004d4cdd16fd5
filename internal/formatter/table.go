package formatter

import (
	"encoding/json"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatTools(tools []ToolEntry) (string, error) {
	if len(tools) == 0 {
		return "No tools found", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("Server", "Tool", "Description", "Parameters")

	for _, tool := range tools {
		t.Row(
			truncateString(tool.Server, 20),
			truncateString(tool.Name, 30),
			truncateString(firstLine(tool.Description), 50),
			truncateString(strings.Join(tool.Parameters(), ", "), 40),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatTool(tool *ToolEntry) (string, error) {
	if tool == nil {
		return "No tool found", nil
	}

	schema := ""
	if tool.InputSchema != nil {
		data, err := json.MarshalIndent(tool.InputSchema, "", "  ")
		if err != nil {
			return "", err
		}
		schema = string(data)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	t.Row("Server", tool.Server)
	t.Row("Tool", tool.Name)
	t.Row("Description", truncateString(tool.Description, 80))
	t.Row("Parameters", strings.Join(tool.Parameters(), ", "))
	t.Row("Schema", schema)

	return t.String(), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
