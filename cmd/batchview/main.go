// Package main is the entry point for the batch viewer.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-batch/internal/config"
	"github.com/Faultbox/midgard-batch/internal/logger"
	"github.com/Faultbox/midgard-batch/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Batch Viewer ===")
	logger.Debug("config", zap.Any("config", cfg))

	if len(cfg.Scene.Models) == 0 {
		path, err := pickModel()
		if err != nil {
			if errors.Is(err, dialog.ErrCancelled) {
				logger.Info("no model selected")
				return
			}
			logger.Error("file dialog failed", zap.Error(err))
			os.Exit(1)
		}
		cfg.Scene.Models = append(cfg.Scene.Models, config.ModelConfig{
			Path:      path,
			Instances: []config.InstanceConfig{{Scale: 1, Speed: 1}},
		})
	}

	v, err := viewer.New(cfg)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

// pickModel asks for a model file when neither flags nor config name one.
func pickModel() (string, error) {
	logger.Info("no models configured, opening file dialog")
	return dialog.File().
		Filter("glTF Models", "gltf", "glb").
		Filter("All Files", "*").
		Title("Open glTF Model").
		Load()
}
