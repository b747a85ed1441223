// Package config handles renderer configuration loading and management.
package config

// Config holds all renderer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Camera   CameraConfig   `yaml:"camera"`
	Shadow   ShadowConfig   `yaml:"shadow"`
	Batch    BatchConfig    `yaml:"batch"`
	Scene    SceneConfig    `yaml:"scene"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// CameraConfig holds the initial free-look camera pose and projection.
type CameraConfig struct {
	Position    [3]float32 `yaml:"position"`
	Yaw         float32    `yaml:"yaw"`   // radians
	Pitch       float32    `yaml:"pitch"` // radians
	FOV         float32    `yaml:"fov"`   // degrees
	Near        float32    `yaml:"near"`
	Far         float32    `yaml:"far"`
	MoveSpeed   float32    `yaml:"move_speed"`
	Sensitivity float32    `yaml:"sensitivity"`
}

// CascadeSplit is one cascade's share of the camera depth range, as ratios of [near, far].
type CascadeSplit struct {
	Near float32 `yaml:"near"`
	Far  float32 `yaml:"far"`
}

// ShadowConfig holds cascaded shadow settings.
type ShadowConfig struct {
	Resolution int            `yaml:"resolution"`
	Cascades   []CascadeSplit `yaml:"cascades"`
	MarginXY   float32        `yaml:"margin_xy"` // light-space x/y enlargement of a fitted cascade
	MarginZ    float32        `yaml:"margin_z"`  // light-space depth multiplier
	Global     bool           `yaml:"global"`
	GlobalMin  [3]float32     `yaml:"global_min"`
	GlobalMax  [3]float32     `yaml:"global_max"`
}

// BatchConfig holds batch registry settings.
type BatchConfig struct {
	MaxVerticesPerMesh int `yaml:"max_vertices_per_mesh"` // 0 disables splitting
}

// SceneConfig lists the models to load and the lighting setup.
type SceneConfig struct {
	Models       []ModelConfig `yaml:"models"`
	SunLongitude float64       `yaml:"sun_longitude"` // degrees
	SunLatitude  float64       `yaml:"sun_latitude"`  // degrees
	SunColor     [3]float32    `yaml:"sun_color"`
	AmbientColor [3]float32    `yaml:"ambient_color"`
}

// ModelConfig is one asset and the instances drawn from it.
type ModelConfig struct {
	Path      string           `yaml:"path"`
	Instances []InstanceConfig `yaml:"instances"`
}

// InstanceConfig places one instance of a model.
type InstanceConfig struct {
	Position  [3]float32 `yaml:"position"`
	Scale     float32    `yaml:"scale"`
	RotationY float32    `yaml:"rotation_y"` // degrees
	Animation int        `yaml:"animation"`  // -1 for bind pose
	Speed     float32    `yaml:"speed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// DefaultCascades returns the split ratios used when none are configured.
// Neighbouring cascades overlap slightly so a caster near a split lands in both.
func DefaultCascades() []CascadeSplit {
	return []CascadeSplit{
		{Near: 0, Far: 0.03},
		{Near: 0.02, Far: 0.04},
		{Near: 0.03, Far: 0.1},
		{Near: 0.07, Far: 0.5},
		{Near: 0.4, Far: 1},
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Camera: CameraConfig{
			Position:    [3]float32{0, 2, 8},
			Yaw:         -1.5707964,
			FOV:         60,
			Near:        0.1,
			Far:         1000,
			MoveSpeed:   5,
			Sensitivity: 0.003,
		},
		Shadow: ShadowConfig{
			Resolution: 2048,
			Cascades:   DefaultCascades(),
			MarginXY:   1.5,
			MarginZ:    10,
		},
		Scene: SceneConfig{
			SunLongitude: 45,
			SunLatitude:  50,
			SunColor:     [3]float32{1, 0.95, 0.9},
			AmbientColor: [3]float32{0.2, 0.2, 0.25},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
