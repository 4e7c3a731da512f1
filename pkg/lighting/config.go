package lighting

import (
	"github.com/fieldworks/cropbed-control/pkg/config"
)

// Config is the on-disk shape of a crop bed lighting core's configuration
// file. Identical to the spray core's configuration less channel_map.
type Config struct {
	CropBedID      uint8            `yaml:"crop_bed_id"`
	CanbusID       string           `yaml:"canbus_id"`
	Port           uint16           `yaml:"port"`
	PDMConfigFiles map[uint8]string `yaml:"pdm_config_files"`
}

// LoadConfig reads a lighting core configuration file from disk. Any
// failure is fatal at startup.
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}
