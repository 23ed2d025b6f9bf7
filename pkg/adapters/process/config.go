package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the PowerShell layout the remediation scripts ship with.
const (
	DefaultCommand   = "pwsh"
	DefaultScriptDir = "scripts"
	DefaultExtension = ".ps1"
	DefaultTimeout   = 5 * time.Minute
)

// DefaultArgs precede the script path on the command line.
var DefaultArgs = []string{"-NoProfile", "-NonInteractive", "-File"}

// Config describes how scripts are launched.
type Config struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	ScriptDir   string            `yaml:"script_dir" json:"script_dir"`
	Extension   string            `yaml:"extension" json:"extension"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
	Environment map[string]string `yaml:"env" json:"env"`
}

// DefaultConfig returns the PowerShell configuration.
func DefaultConfig() Config {
	return Config{
		Command:   DefaultCommand,
		Args:      append([]string(nil), DefaultArgs...),
		ScriptDir: DefaultScriptDir,
		Extension: DefaultExtension,
		Timeout:   DefaultTimeout,
	}
}

// withDefaults fills every unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Command == "" {
		c.Command = def.Command
		if c.Args == nil {
			c.Args = def.Args
		}
	}
	if c.ScriptDir == "" {
		c.ScriptDir = def.ScriptDir
	}
	if c.Extension == "" {
		c.Extension = def.Extension
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// LoadConfig reads a runner configuration file (YAML or JSON).
// A missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read runner config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg.withDefaults(), nil
}
