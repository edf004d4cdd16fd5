package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/harunnryd/toolbridge/cmd/toolbridge/runtime"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with the model using the configured MCP tools",
	Long:  `With a prompt, runs one exchange and prints the final answer. Without one, starts an interactive session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transcriptPath, _ := cmd.Flags().GetString("transcript")
		prompt := strings.TrimSpace(strings.Join(args, " "))

		return executeWithRuntime(cmd, modeChat, os.Stdout, func(r *runtime.RuntimeComponents) error {
			if transcriptPath == "" {
				transcriptPath = r.Config.Transcript.Path
			}

			if prompt == "" {
				repl := runtime.NewREPL(r, os.Stdin, os.Stdout, transcriptPath)
				return repl.Start()
			}

			result, runErr := r.Loop.Run(r.Ctx, prompt)
			fmt.Fprintln(os.Stdout)

			path, err := r.SaveTranscript(transcriptPath)
			if err != nil {
				slog.Warn("Failed to save transcript", "path", transcriptPath, "error", err)
			} else if path != "" {
				slog.Info("Transcript saved", "path", path)
			}

			if runErr != nil {
				return runErr
			}
			slog.Debug("Chat completed", "turns", result.Turns, "tool_calls", result.ToolCalls)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("transcript", "", "write the conversation to this file (.json or .yaml) after each exchange")
}
