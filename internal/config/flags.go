package config

import (
	"flag"
	"strings"
)

// modelList collects repeated -model flags.
type modelList []string

func (m *modelList) String() string { return strings.Join(*m, ",") }

func (m *modelList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagShadowRes  = flag.Int("shadow-res", 0, "Shadow map resolution")
	flagModels     modelList
)

func init() {
	flag.Var(&flagModels, "model", "glTF model to load with one instance at the origin (repeatable)")
}

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagShadowRes > 0 {
		cfg.Shadow.Resolution = *flagShadowRes
	}
	for _, path := range flagModels {
		cfg.Scene.Models = append(cfg.Scene.Models, ModelConfig{
			Path:      path,
			Instances: []InstanceConfig{{Scale: 1, Animation: 0, Speed: 1}},
		})
	}
}
