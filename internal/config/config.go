package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Model struct {
		Path     string `yaml:"path"`
		Metadata string `yaml:"metadata"`
		URL      string `yaml:"url"`
	} `yaml:"model"`

	Centroids struct {
		Path string `yaml:"path"`
		URL  string `yaml:"url"`
	} `yaml:"centroids"`
}

// LoadConfig reads config.yaml (or the file named by SOIL_CONFIG).
// Relative artifact paths are resolved against the config file's
// directory; the PORT environment variable overrides the configured
// port.
func LoadConfig() (*Config, error) {
	configPath := "config.yaml"
	if path := os.Getenv("SOIL_CONFIG"); path != "" {
		configPath = path
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(absPath)
	config.Model.Path = resolvePath(config.Model.Path, configDir)
	config.Model.Metadata = resolvePath(config.Model.Metadata, configDir)
	config.Centroids.Path = resolvePath(config.Centroids.Path, configDir)

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	return config, nil
}

func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
