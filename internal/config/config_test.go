package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}

	if cfg.Camera.FOV != 60 {
		t.Errorf("expected fov 60, got %f", cfg.Camera.FOV)
	}
	if cfg.Camera.Near != 0.1 || cfg.Camera.Far != 1000 {
		t.Errorf("expected near/far 0.1/1000, got %f/%f", cfg.Camera.Near, cfg.Camera.Far)
	}

	if len(cfg.Shadow.Cascades) != 5 {
		t.Fatalf("expected 5 cascades, got %d", len(cfg.Shadow.Cascades))
	}
	if cfg.Shadow.Cascades[4].Far != 1 {
		t.Errorf("expected last cascade to reach the far plane, got %f", cfg.Shadow.Cascades[4].Far)
	}
	if cfg.Shadow.MarginXY != 1.5 {
		t.Errorf("expected margin_xy 1.5, got %f", cfg.Shadow.MarginXY)
	}
	if cfg.Shadow.MarginZ != 10 {
		t.Errorf("expected margin_z 10, got %f", cfg.Shadow.MarginZ)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false

shadow:
  resolution: 4096
  margin_xy: 2
  cascades:
    - {near: 0, far: 0.1}
    - {near: 0.1, far: 1}
  global: true
  global_min: [-50, -5, -50]
  global_max: [50, 20, 50]

batch:
  max_vertices_per_mesh: 65536

scene:
  models:
    - path: "assets/fox.gltf"
      instances:
        - {position: [1, 0, 2], scale: 0.5, animation: 1, speed: 1}

logging:
  level: "debug"
  log_file: "render.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 || cfg.Graphics.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Shadow.Resolution != 4096 {
		t.Errorf("expected shadow resolution 4096, got %d", cfg.Shadow.Resolution)
	}
	if cfg.Shadow.MarginXY != 2 {
		t.Errorf("expected margin_xy 2, got %f", cfg.Shadow.MarginXY)
	}
	if cfg.Shadow.MarginZ != 10 {
		t.Errorf("expected margin_z to keep default 10, got %f", cfg.Shadow.MarginZ)
	}
	if len(cfg.Shadow.Cascades) != 2 {
		t.Fatalf("expected file cascades to replace defaults, got %d", len(cfg.Shadow.Cascades))
	}
	if cfg.Shadow.Cascades[1] != (CascadeSplit{Near: 0.1, Far: 1}) {
		t.Errorf("unexpected second cascade %+v", cfg.Shadow.Cascades[1])
	}
	if !cfg.Shadow.Global || cfg.Shadow.GlobalMax[1] != 20 {
		t.Errorf("unexpected global cascade settings %+v", cfg.Shadow)
	}
	if cfg.Batch.MaxVerticesPerMesh != 65536 {
		t.Errorf("expected max vertices 65536, got %d", cfg.Batch.MaxVerticesPerMesh)
	}
	if len(cfg.Scene.Models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(cfg.Scene.Models))
	}
	inst := cfg.Scene.Models[0].Instances
	if len(inst) != 1 || inst[0].Position != [3]float32{1, 0, 2} || inst[0].Animation != 1 {
		t.Errorf("unexpected instances %+v", inst)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "render.log" {
		t.Errorf("expected log file 'render.log', got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFileKeepsDefaultCascades(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Shadow.Cascades) != len(DefaultCascades()) {
		t.Errorf("expected default cascades, got %d", len(cfg.Shadow.Cascades))
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Graphics.Width = 0 }},
		{"far before near", func(c *Config) { c.Camera.Far = c.Camera.Near }},
		{"zero shadow resolution", func(c *Config) { c.Shadow.Resolution = 0 }},
		{"no cascades", func(c *Config) { c.Shadow.Cascades = nil }},
		{"collapsed cascade", func(c *Config) { c.Shadow.Cascades[1] = CascadeSplit{Near: 0.3, Far: 0.3} }},
		{"cascade beyond far", func(c *Config) { c.Shadow.Cascades[4].Far = 1.5 }},
		{"cascades out of order", func(c *Config) { c.Shadow.Cascades[2].Near = 0 }},
		{"shrinking margin", func(c *Config) { c.Shadow.MarginXY = 0.5 }},
		{"inverted global bounds", func(c *Config) {
			c.Shadow.Global = true
			c.Shadow.GlobalMin = [3]float32{1, 0, 0}
		}},
		{"negative split limit", func(c *Config) { c.Batch.MaxVerticesPerMesh = -1 }},
		{"model without path", func(c *Config) { c.Scene.Models = []ModelConfig{{}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Shadow.Resolution = 1024
	cfg.Scene.Models = []ModelConfig{{Path: "a.glb"}}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Shadow.Resolution != 1024 {
		t.Errorf("expected resolution 1024, got %d", loaded.Shadow.Resolution)
	}
	if len(loaded.Scene.Models) != 1 || loaded.Scene.Models[0].Path != "a.glb" {
		t.Errorf("unexpected models %+v", loaded.Scene.Models)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "shadow resolution flag",
			setup: func() { *flagShadowRes = 512 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Shadow.Resolution != 512 {
					t.Errorf("expected shadow resolution 512, got %d", cfg.Shadow.Resolution)
				}
			},
			teardown: func() { *flagShadowRes = 0 },
		},
		{
			name: "model flags",
			setup: func() {
				_ = flagModels.Set("a.gltf")
				_ = flagModels.Set("b.glb")
			},
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Scene.Models) != 2 {
					t.Fatalf("expected 2 models, got %d", len(cfg.Scene.Models))
				}
				if cfg.Scene.Models[1].Path != "b.glb" {
					t.Errorf("expected b.glb, got %s", cfg.Scene.Models[1].Path)
				}
				if len(cfg.Scene.Models[0].Instances) != 1 {
					t.Errorf("expected one default instance, got %d", len(cfg.Scene.Models[0].Instances))
				}
			},
			teardown: func() { flagModels = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("shadow:\n  resolution: -1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
