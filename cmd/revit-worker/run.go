package main

import (
	"context"
	"fmt"

	"github.com/enneadtab/revit-worker/internal/worker"
	"github.com/enneadtab/revit-worker/internal/worker/config"
	"github.com/enneadtab/revit-worker/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the worker as a service, processing job descriptors as they appear",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.LogLevel)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		return worker.New(cfg).Run(context.Background())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Wait for a single job descriptor, process it and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.LogLevel)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		return worker.New(cfg).RunOnce(context.Background())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the worker version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(worker.Version())
	},
}

func loadConfig() (*config.Config, error) {
	cfg := config.NewDefault()
	if configFile == "" {
		configFile = config.DefaultConfigFile
	}
	if err := cfg.ParseConfigFile(configFile); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}
