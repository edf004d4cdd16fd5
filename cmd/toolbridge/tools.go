package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/toolbridge/cmd/toolbridge/runtime"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/formatter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List the tools offered by the configured MCP servers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")

		format, err := formatter.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		toolFormatter, err := formatter.NewFormatterFactory().Create(format)
		if err != nil {
			return fmt.Errorf("invalid output format: %w", err)
		}

		return executeWithRuntime(cmd, modeToolsOnly, os.Stdout, func(r *runtime.RuntimeComponents) error {
			entries := formatter.EntriesFrom(r.Router.Catalog(), r.Router.Owner)

			output, err := renderTools(toolFormatter, entries, args)
			if err != nil {
				return err
			}
			fmt.Println(output)
			return nil
		})
	},
}

func renderTools(f formatter.ToolFormatter, entries []formatter.ToolEntry, args []string) (string, error) {
	if len(args) == 0 {
		output, err := f.FormatTools(entries)
		if err != nil {
			return "", fmt.Errorf("failed to format output: %w", err)
		}
		return output, nil
	}

	for i := range entries {
		if entries[i].Name == args[0] {
			output, err := f.FormatTool(&entries[i])
			if err != nil {
				return "", fmt.Errorf("failed to format output: %w", err)
			}
			return output, nil
		}
	}
	return "", toolbridgeErrors.NotFound(fmt.Sprintf("tool %q", args[0]))
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml)")
}
