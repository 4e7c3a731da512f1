package camera

import (
	"github.com/fieldworks/cropbed-control/pkg/config"
)

// Roi is a sub-rectangle of the camera sensor to read out.
type Roi struct {
	X int32 `yaml:"x"`
	Y int32 `yaml:"y"`
	W int32 `yaml:"w"`
	H int32 `yaml:"h"`
}

// Config is the on-disk shape of one camera's configuration file.
type Config struct {
	BedLocationID   *uint8  `yaml:"bed_location_id,omitempty"`
	FPS             uint32  `yaml:"fps"`
	IPAddress       string  `yaml:"ip_address"`
	Roi             *Roi    `yaml:"roi,omitempty"`
	PixelFormat     string  `yaml:"pixel_format,omitempty"`
	Trigger         string  `yaml:"trigger,omitempty"`
	AcquisitionMode string  `yaml:"acquisition_mode,omitempty"`
	AutoPacketSize  *bool   `yaml:"auto_packet_size,omitempty"`
	AutoGain        *bool   `yaml:"auto_gain,omitempty"`
	AutoBrightness  *bool   `yaml:"auto_brightness,omitempty"`
	AutoExposure    *bool   `yaml:"auto_exposure,omitempty"`
	ExposureMin     *int32  `yaml:"exposure_min,omitempty"`
	ExposureMax     *int32  `yaml:"exposure_max,omitempty"`
}

// LoadConfig reads a camera configuration file from disk. Any failure is
// fatal at startup.
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}
