package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Settings holds values configured through the CLI rather than the
// environment. Stored as TOML in the per-user config directory.
type Settings struct {
	AppID string `toml:"app_id"`
}

// LoadSettings reads the settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	settings := &Settings{}
	if err := toml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

// Save writes the settings file with restricted permissions.
func (s *Settings) Save(path string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
