package camarray

import (
	"github.com/fieldworks/cropbed-control/pkg/config"
)

// Config is the on-disk shape of a camera array core's configuration
// file.
type Config struct {
	CropBedID        uint8            `yaml:"crop_bed_id"`
	ImagePath        string           `yaml:"image_path"`
	CameraConfigFiles map[uint8]string `yaml:"camera_config_files"`
}

// LoadConfig reads a camera array configuration file from disk. Any
// failure is fatal at startup.
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}
