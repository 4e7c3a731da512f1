package spray

import (
	"github.com/fieldworks/cropbed-control/pkg/config"
)

// ChannelMapping is one entry of the optional physical-channel remap
// table: physical_channel -> (wired_channel, pdm_index).
type ChannelMapping struct {
	Wired    uint8 `yaml:"wired"`
	PDMIndex uint8 `yaml:"pdm_index"`
}

// Config is the on-disk shape of a crop bed power (spray) core's
// configuration file.
type Config struct {
	CropBedID       uint8                     `yaml:"crop_bed_id"`
	CanbusID        string                    `yaml:"canbus_id"`
	Port            uint16                    `yaml:"port"`
	PDMConfigFiles  map[uint8]string          `yaml:"pdm_config_files"`
	ChannelMap      map[uint8]ChannelMapping `yaml:"channel_map,omitempty"`
}

// LoadConfig reads a spray core configuration file from disk. Any
// failure is fatal at startup.
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}
