// Package config provides the shared YAML-loading helper every crop bed
// component's configuration type builds on: read a file from disk and
// unmarshal it into the caller's config struct, failing loudly - per the
// error handling design, a missing or malformed configuration file is
// always a startup-fatal condition, never a default-and-continue.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path and unmarshals it into a new T.
func Load[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := new(T)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
