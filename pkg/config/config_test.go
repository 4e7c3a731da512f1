package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: weeder\ncount: 3\n"), 0o644))

	cfg, err := Load[sampleConfig](path)
	require.NoError(t, err)
	assert.Equal(t, "weeder", cfg.Name)
	assert.Equal(t, 3, cfg.Count)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load[sampleConfig]("/nonexistent/path.yaml")
	require.Error(t, err)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load[sampleConfig](path)
	require.Error(t, err)
}
