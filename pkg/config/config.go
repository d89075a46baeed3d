// Package config loads the server's YAML configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Programs ProgramsConfig `yaml:"programs"`
	Vision   VisionConfig   `yaml:"vision"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ProgramsConfig struct {
	// Dir holds the program scripts (empty = no programs)
	Dir string `yaml:"dir"`
	// BootID is the program that always runs
	BootID int `yaml:"boot_id"`
	// SourceID tags source code facts
	SourceID string `yaml:"source_id"`
	// Watch reloads scripts when they change
	Watch bool `yaml:"watch"`
}

type VisionConfig struct {
	// ReservedID tags detection facts; the driver owns that namespace
	ReservedID string `yaml:"reserved_id"`
	// ReplayFile is a JSON-lines file of recorded batches (empty = no vision)
	ReplayFile string        `yaml:"replay_file"`
	Interval   time.Duration `yaml:"interval"`
	Loop       bool          `yaml:"loop"`
}

type RenderConfig struct {
	// Output is where frames are written as JSON lines: "-" for stdout,
	// a path, or empty to not render
	Output string `yaml:"output"`
}

type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 9000,
		},
		Programs: ProgramsConfig{
			Dir:      "scripts",
			BootID:   0,
			SourceID: "00",
			Watch:    true,
		},
		Vision: VisionConfig{
			ReservedID: "camera",
			Interval:   16 * time.Millisecond,
			Loop:       false,
		},
		Log: LogConfig{
			Development: true,
			Level:       "info",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Programs.SourceID == "" {
		return errors.New("programs.source_id is required")
	}
	if c.Vision.ReservedID == "" {
		return errors.New("vision.reserved_id is required")
	}
	if c.Vision.ReservedID == c.Programs.SourceID {
		return errors.Errorf("vision.reserved_id and programs.source_id must differ; both are %q", c.Vision.ReservedID)
	}
	// Programs tag their facts with #<id>.
	if n, err := strconv.Atoi(c.Vision.ReservedID); err == nil && strconv.Itoa(n) == c.Vision.ReservedID {
		return errors.Errorf("vision.reserved_id %q collides with program %d", c.Vision.ReservedID, n)
	}
	if c.Vision.Interval <= 0 {
		return errors.Errorf("vision.interval must be positive; got %s", c.Vision.Interval)
	}
	return nil
}
