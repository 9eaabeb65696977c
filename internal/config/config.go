// Package config loads the YAML configuration file and applies defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Speech  SpeechConfig  `yaml:"speech"`
	Export  ExportConfig  `yaml:"export"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the multimodal content model.
type ModelConfig struct {
	// APIKey authenticates against the Gemini API. Falls back to the
	// GEMINI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Name is the model identifier.
	Name string `yaml:"name"`
}

// SpeechConfig configures the per-language synthesis providers. A language
// with no configured provider fails synthesis immediately rather than
// falling back to the other provider's voice.
type SpeechConfig struct {
	Dutch   DutchVoiceConfig   `yaml:"dutch"`
	English EnglishVoiceConfig `yaml:"english"`
}

// DutchVoiceConfig configures the ElevenLabs voice for Dutch narration.
type DutchVoiceConfig struct {
	// APIKey authenticates against ElevenLabs. Falls back to the
	// ELEVENLABS_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// VoiceID selects the voice.
	VoiceID string `yaml:"voice_id"`
}

// EnglishVoiceConfig configures the Azure Speech voice for English
// narration.
type EnglishVoiceConfig struct {
	// APIKey authenticates against Azure Speech. Falls back to the
	// AZURE_SPEECH_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Region is the Azure service region, e.g. "westeurope".
	Region string `yaml:"region"`

	// VoiceID selects the neural voice.
	VoiceID string `yaml:"voice_id"`
}

// ExportConfig configures export packaging.
type ExportConfig struct {
	// Format selects the packager: "video" or "archive".
	Format string `yaml:"format"`
}

// PathsConfig configures watch-mode directories.
type PathsConfig struct {
	// Input is the directory watched for new PDF decks.
	Input string `yaml:"input"`

	// Output is where exported artifacts land.
	Output string `yaml:"output"`

	// Archived is where processed decks are moved.
	Archived string `yaml:"archived"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir is where rotated log files are written. Empty disables file
	// logging.
	Dir string `yaml:"dir"`
}

// Load reads the configuration file at path, applies environment fallbacks
// and defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills environment fallbacks and defaults, then checks the
// required fields.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Speech.Dutch.APIKey == "" {
		c.Speech.Dutch.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if c.Speech.English.APIKey == "" {
		c.Speech.English.APIKey = os.Getenv("AZURE_SPEECH_KEY")
	}

	if c.Model.Name == "" {
		c.Model.Name = "gemini-2.5-flash"
	}
	if c.Export.Format == "" {
		c.Export.Format = "video"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output"
	}
	if c.Paths.Archived == "" {
		c.Paths.Archived = "archived"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key is required " +
			"(or set GEMINI_API_KEY)")
	}
	if c.Export.Format != "video" && c.Export.Format != "archive" {
		return fmt.Errorf("export.format must be video or archive, "+
			"got %q", c.Export.Format)
	}

	// Voice credentials stay optional: a missing provider only fails
	// when a presentation actually resolves to that language.
	return nil
}
