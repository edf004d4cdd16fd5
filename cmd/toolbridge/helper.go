package main

import (
	"context"
	"fmt"
	"io"

	"github.com/harunnryd/toolbridge/cmd/toolbridge/runtime"

	"github.com/harunnryd/toolbridge/internal/config"

	"github.com/spf13/cobra"
)

type runtimeMode int

const (
	modeChat runtimeMode = iota
	modeToolsOnly
)

func executeWithRuntime(cmd *cobra.Command, mode runtimeMode, output io.Writer, fn func(*runtime.RuntimeComponents) error) error {
	loadedCfg, err := loadConfigForCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	signals := NewSignalHandler(parent)
	signals.Start()
	defer signals.Stop()

	builder := runtime.NewRuntimeBuilder().
		WithContext(signals.Context()).
		WithConfig(loadedCfg).
		WithOutput(output)
	if mode == modeToolsOnly {
		builder = builder.ToolsOnly()
	}

	components, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components)
}

func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	loadedCfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}

	return loadedCfg, nil
}
