// pkg/core/config.go
package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Settings holds user-level mopack defaults
type Settings struct {
	Directory      string            `yaml:"directory" mapstructure:"directory"`
	TargetPlatform string            `yaml:"target_platform" mapstructure:"target_platform"`
	Strict         bool              `yaml:"strict" mapstructure:"strict"`
	Debug          bool              `yaml:"debug" mapstructure:"debug"`
	Env            map[string]string `yaml:"env" mapstructure:"env"`
	DeployDirs     map[string]string `yaml:"deploy_dirs" mapstructure:"deploy_dirs"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() *Settings {
	return &Settings{
		Directory:  getDefaultDirectory(),
		Env:        map[string]string{},
		DeployDirs: map[string]string{},
	}
}

// SettingsPath returns the default location of the settings file
func SettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mopack", "config.yaml"), nil
}

// LoadSettings loads settings from file
func LoadSettings(fs afero.Fs, path string) (*Settings, error) {
	if path == "" {
		var err error
		if path, err = SettingsPath(); err != nil {
			return DefaultSettings(), nil
		}
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	return cfg, nil
}

// SaveSettings saves settings to file
func SaveSettings(fs afero.Fs, cfg *Settings, path string) error {
	if path == "" {
		var err error
		if path, err = SettingsPath(); err != nil {
			return err
		}
	}

	// Ensure directory exists
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	return nil
}

func getDefaultDirectory() string {
	if dir := os.Getenv("MOPACK_DIRECTORY"); dir != "" {
		return dir
	}
	return "."
}
