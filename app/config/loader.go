package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of harvest source configurations
type Loader struct {
	sourcesDir string
}

// NewLoader creates a new configuration loader
func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads all YAML configuration files from the sources directory,
// keyed by source name.
func (l *Loader) LoadAll() (map[string]*SourceConfig, error) {
	configs := make(map[string]*SourceConfig)

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		configs[config.Source.Name] = config
	}

	return configs, nil
}

// loadFile loads a single YAML configuration file
func (l *Loader) loadFile(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config, filepath.Dir(path))

	return &config, nil
}

// setDefaults applies default values to configuration
func (l *Loader) setDefaults(config *SourceConfig, baseDir string) {
	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = 86400 // seconds
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 60 // seconds
	}
	if config.Extraction.Charset == "" {
		config.Extraction.Charset = "utf-8"
	}
	if config.Extraction.RulesFile != "" && !filepath.IsAbs(config.Extraction.RulesFile) {
		config.Extraction.RulesFile = filepath.Join(baseDir, config.Extraction.RulesFile)
	}
	if len(config.Tags.Remove) == 0 {
		config.Tags.Remove = DefaultTagsRemove
	}
	if len(config.Tags.Substitutions) == 0 {
		config.Tags.Substitutions = DefaultTagSubstitutions
	}
	if len(config.Cleanup.ProtectedPaths) == 0 {
		config.Cleanup.ProtectedPaths = DefaultProtectedPaths
		if home, err := os.UserHomeDir(); err == nil {
			config.Cleanup.ProtectedPaths = append(config.Cleanup.ProtectedPaths, home)
		}
	}
}

// validate validates the configuration
func (l *Loader) validate(config *SourceConfig) error {
	if config.Source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if config.Source.IndexURL == "" {
		return fmt.Errorf("source index URL is required")
	}
	if config.Source.GatewayURL == "" {
		return fmt.Errorf("source gateway URL is required")
	}
	if config.Extraction.RulesFile == "" {
		return fmt.Errorf("extraction rules file is required")
	}
	if config.Extraction.Publisher == "" {
		return fmt.Errorf("extraction publisher is required")
	}

	if config.Settings.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must be non-negative")
	}
	if config.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	return nil
}
