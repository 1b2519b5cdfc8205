// Package config loads service configuration from the process environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read by narequenta services.
const EnvPrefix = "NAREQUENTA_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvPrefixed loads configuration whose struct tags omit a shared prefix,
// e.g. `env:"DB_PATH"` read from NAREQUENTA_GAME_DB_PATH with prefix "GAME_".
func ParseEnvPrefixed(target any, prefix string) error {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !strings.HasPrefix(prefix, EnvPrefix) {
		prefix = EnvPrefix + prefix
	}
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env %s*: %w", prefix, err)
	}
	return nil
}
