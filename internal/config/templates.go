package config

import (
	"fmt"
	"os"
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

const templateHeader = "# lookingglass panel configuration\n"

// Template renders the default file configuration in format.
func Template(format string) (string, error) {
	raw := DefaultFile()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatTOML:
		data, err := gotoml.Marshal(raw)
		if err != nil {
			return "", fmt.Errorf("render toml template: %w", err)
		}
		return templateHeader + string(data), nil
	case FormatYAML, "yml":
		data, err := yaml.Marshal(raw)
		if err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
		return templateHeader + string(data), nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
