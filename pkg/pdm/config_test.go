package pdm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigMarshalYAMLOrdersChannelsAscending(t *testing.T) {
	cfg := NewConfig(3, 1)
	// Insert out of order to exercise the sort, not map iteration luck.
	cfg.OutputChannelsConfig[9] = ChannelConfig{LoadControl: "high_side"}
	cfg.OutputChannelsConfig[2] = ChannelConfig{LoadControl: "low_side"}
	cfg.OutputChannelsConfig[5] = ChannelConfig{LoadControl: "high_side"}

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	text := string(out)
	i2 := strings.Index(text, "2:")
	i5 := strings.Index(text, "5:")
	i9 := strings.Index(text, "9:")
	require.True(t, i2 >= 0 && i5 >= 0 && i9 >= 0)
	assert.True(t, i2 < i5, "channel 2 must serialise before channel 5")
	assert.True(t, i5 < i9, "channel 5 must serialise before channel 9")
}

func TestConfigRoundTripsThroughLoadConfig(t *testing.T) {
	cfg := NewConfig(7, 2)
	cfg.OutputFunctionConfig[1] = FunctionConfig{LoadProfile: "resistive", PowerOnResetDuty: 100}
	cfg.OutputChannelsConfig[1] = ChannelConfig{LoadControl: "high_side", CurrentLimit: 20}

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(out, &loaded))
	assert.Equal(t, cfg.Address, loaded.Address)
	assert.Equal(t, cfg.BedLocationID, loaded.BedLocationID)
	assert.Equal(t, cfg.OutputFunctionConfig[1], loaded.OutputFunctionConfig[1])
	assert.Equal(t, cfg.OutputChannelsConfig[1], loaded.OutputChannelsConfig[1])
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/pdm.yaml")
	require.Error(t, err)
}
