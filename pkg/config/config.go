package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/process"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration file structure. On disk it is
// either this document or a bare list of processes, in JSON or YAML.
type Config struct {
	Processes []process.ProcessSpec `yaml:"processes" json:"processes"`
}

var utf8BOM = []byte("\xef\xbb\xbf")

// LoadConfigFromFile loads and validates the configuration file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("filename", filename)
		}
		return nil, err
	}

	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("filename", filename)
	}

	return config, nil
}

// ParseConfig decodes configuration data without validating it. Data
// starting with '[' or '{' is JSON; anything else is YAML.
func ParseConfig(data []byte) (*Config, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return parseJSONConfig(trimmed)
	}
	return parseYAMLConfig(data)
}

func parseJSONConfig(data []byte) (*Config, error) {
	var config Config
	if data[0] == '[' {
		if err := json.Unmarshal(data, &config.Processes); err != nil {
			return nil, errors.NewValidationError("failed to parse process list JSON", err)
		}
		return &config, nil
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse configuration JSON", err)
	}
	return &config, nil
}

func parseYAMLConfig(data []byte) (*Config, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, errors.NewValidationError("failed to parse configuration", err)
	}

	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return nil, errors.NewValidationError("configuration is empty", nil)
	}
	root := document.Content[0]

	var config Config
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&config.Processes); err != nil {
			return nil, errors.NewValidationError("failed to decode process list", err)
		}
	case yaml.MappingNode:
		if err := root.Decode(&config); err != nil {
			return nil, errors.NewValidationError("failed to decode configuration", err)
		}
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("configuration must be a list of processes or a mapping, line %d", root.Line), nil)
	}

	return &config, nil
}

// ValidateConfig validates every process spec and name uniqueness
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	return process.ValidateProcessSpecs(config.Processes)
}

// ValidateConfigFile validates a configuration file without running anything
func ValidateConfigFile(filename string) error {
	_, err := LoadConfigFromFile(filename)
	return err
}
