package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/toolbridge/internal/config"
	"github.com/harunnryd/toolbridge/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "toolbridge",
	Short:         "Bridge a streaming model to MCP tools",
	Long:          `toolbridge drives a streaming chat model and answers its tool calls with tools served by MCP servers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Log.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.toolbridge/config.yaml)")
	rootCmd.PersistentFlags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("model.provider", config.DefaultModelProvider, "model provider (openai, ollama, anthropic, gemini)")
	rootCmd.PersistentFlags().String("model.name", config.DefaultModelName, "model name")
	rootCmd.PersistentFlags().String("model.base_url", "", "model API base URL")
}
