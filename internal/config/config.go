// Package config loads router configuration from an optional config.yaml
// plus INTAKE_-prefixed environment variables, with ${VAR} substitution
// for secret-bearing fields.
package config

import (
	"os"
	"regexp"
	"strings"

	yamlparser "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Backend  BackendConfig  `koanf:"backend"`
	Orgs     OrgsConfig     `koanf:"orgs"`
	Storage  StorageConfig  `koanf:"storage"`
	Calendar CalendarConfig `koanf:"calendar"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type BackendConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type OrgsConfig struct {
	// Dir holds one <org>.yaml catalog document per tenant.
	Dir string `koanf:"dir"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type CalendarConfig struct {
	// Credentials is a JSON map of calendar id to service-account key,
	// usually supplied as ${CALENDAR_CREDENTIALS}.
	Credentials string `koanf:"credentials"`
	IDsFile     string `koanf:"ids_file"`
	Timezone    string `koanf:"timezone"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yamlparser.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("INTAKE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "INTAKE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]interface{}{
		"server.port":       8080,
		"orgs.dir":          "orgs",
		"storage.type":      "sqlite",
		"storage.sqlite.path": "./data/intake.db",
		"calendar.ids_file": "calendars.json",
		"calendar.timezone": "America/Los_Angeles",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secret-bearing fields
	cfg.Backend.APIKey = substituteEnvVars(cfg.Backend.APIKey)
	cfg.Calendar.Credentials = substituteEnvVars(cfg.Calendar.Credentials)

	// Keep the original deployment's environment contract working when
	// the config file carries no backend section at all.
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if cfg.Calendar.Credentials == "" {
		cfg.Calendar.Credentials = os.Getenv("CALENDAR_CREDENTIALS")
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
