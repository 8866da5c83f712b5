package authcore

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "AUTHCORE_CONFIG"

// DefaultConfigPaths lists where LoadConfig looks for a config file, in
// order; the first file found wins.
var DefaultConfigPaths = []string{
	"authcore.yaml",
	"authcore.yml",
	"/etc/authcore/config.yaml",
}

// envPrefix scopes environment overrides to this module.
const envPrefix = "AUTHCORE_"

// LoadConfig builds a [Config] in three layers: struct defaults, then
// an optional YAML file, then AUTHCORE_* environment variables. Key
// material for JWT signing is not loadable this way and must be set on
// the returned Config before Build.
//
// Environment names map section-first with a double underscore between
// section and key: AUTHCORE_SECURITY__MAX_LOGIN_ATTEMPTS sets
// security.max_login_attempts.
func LoadConfig() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps AUTHCORE_SECTION__KEY_NAME to section.key_name.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "__", ".", 1)
}
