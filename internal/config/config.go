// Package config loads the formcoach TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port int
	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`
	LogJSON     bool   `toml:"log_json"`
	// storage and hooks
	DataDir     string `toml:"data_dir"`
	StaticDir   string `toml:"static_dir"`
	HooksDir    string `toml:"hooks_dir"`
	HookTimeout int    `toml:"hook_timeout_ms"`
	// capture
	CameraID    int    `toml:"camera_id"`
	VideoFile   string `toml:"video_file"`
	LoopVideo   bool   `toml:"loop_video"`
	FrameWidth  int    `toml:"frame_width"`
	FrameHeight int    `toml:"frame_height"`
	// detection
	TargetFPS  int     `toml:"target_fps"`
	MinScore   float64 `toml:"min_score"`
	MotionGate bool    `toml:"motion_gate"`
	ModelType  string  `toml:"model_type"`
	ScriptPath string  `toml:"script_path"`
	PythonPath string  `toml:"python_path"`
	// presentation
	ShowOverlay bool `toml:"show_overlay"`
	Tray        bool `toml:"tray"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the section for env with
// defaults applied.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config %s has no section for env %s", path, env)
	}

	cfg.Defaults()
	return cfg, nil
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Port == 0 {
		c.Port = 8765
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.HooksDir == "" {
		c.HooksDir = filepath.Join(c.DataDir, "hooks")
	}
	if c.HookTimeout <= 0 {
		c.HookTimeout = 10000
	}
	if c.FrameWidth == 0 {
		c.FrameWidth = 640
	}
	if c.FrameHeight == 0 {
		c.FrameHeight = 480
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = 15
	}
	if c.MinScore == 0 {
		c.MinScore = 0.3
	}
	if c.ModelType == "" {
		c.ModelType = "lightning"
	}
}

// DBPath is the SQLite database file inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "formcoach.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".formcoach"
	}
	return filepath.Join(home, ".formcoach")
}
