// Package camera implements the driver for one networked GigE Vision
// camera: configuration/validation at build time, and a software-triggered
// acquisition loop primitive used by the camera array core.
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
)

// minFrameRate and maxFrameRate stand in for the device-reported fps
// bounds; a real GigE Vision sensor reports these over GenICam
// (AcquisitionFrameRate min/max), here fixed per the common range for
// industrial area-scan cameras this machine uses.
const (
	minFrameRate = 1
	maxFrameRate = 60

	// binningStep is the ROI granularity enforced when pixel binning is
	// active; width/height must be an exact multiple.
	binningStep = 2

	bytesPerPixel = 1 // BAYER_RG_8 - the only pixel format this system actually serialises

	// popFrameWait is the longest TryPopFrame waits for a ready buffer.
	popFrameWait = time.Millisecond
)

// Camera is one networked capture device, bound to a crop bed location.
type Camera struct {
	uuid       uuid.UUID
	locationID *uint8
	cfg        *Config
	client     *client
	dataConn   net.PacketConn

	roi        Roi
	bufferSize int
	buffer     []byte

	log *slog.Logger
}

// Build creates a device handle and validates/applies every configured
// setting, in the exact order a real GenICam device needs: frame rate
// bounds, ROI (with binning-multiple assertions), pixel format,
// acquisition mode, auto exposure, auto brightness, exposure bounds, auto
// gain, an unconditional on-demand white balance, trigger source (set
// last so it does not get clobbered by later configuration calls), and
// finally packet-size/MTU auto-negotiation. Every step is fatal on error.
func Build(ctx context.Context, cfg *Config, log *slog.Logger) (*Camera, error) {
	cl, err := dial(ctx, cfg.IPAddress, log)
	if err != nil {
		return nil, fmt.Errorf("camera: build: %w", err)
	}

	if cfg.FPS < minFrameRate || cfg.FPS > maxFrameRate {
		return nil, fmt.Errorf("camera: fps %d out of device bounds [%d,%d]", cfg.FPS, minFrameRate, maxFrameRate)
	}
	if err := cl.setFloat("AcquisitionFrameRate", float64(cfg.FPS)); err != nil {
		return nil, fmt.Errorf("camera: set frame rate: %w", err)
	}

	roi := Roi{W: 1920, H: 1080}
	if cfg.Roi != nil {
		roi = *cfg.Roi
		if roi.W%binningStep != 0 || roi.H%binningStep != 0 {
			return nil, fmt.Errorf("camera: roi %dx%d not divisible by binning step %d", roi.W, roi.H, binningStep)
		}
		if err := cl.setInteger("OffsetX", int64(roi.X)); err != nil {
			return nil, fmt.Errorf("camera: set roi offset x: %w", err)
		}
		if err := cl.setInteger("OffsetY", int64(roi.Y)); err != nil {
			return nil, fmt.Errorf("camera: set roi offset y: %w", err)
		}
		if err := cl.setInteger("Width", int64(roi.W)); err != nil {
			return nil, fmt.Errorf("camera: set roi width: %w", err)
		}
		if err := cl.setInteger("Height", int64(roi.H)); err != nil {
			return nil, fmt.Errorf("camera: set roi height: %w", err)
		}
		gotW, err := cl.getInteger("Width")
		if err != nil {
			return nil, fmt.Errorf("camera: read back roi width: %w", err)
		}
		if gotW != int64(roi.W) {
			return nil, fmt.Errorf("camera: roi width mismatch after set: want %d got %d", roi.W, gotW)
		}
	}

	if cfg.PixelFormat != "" {
		if err := cl.setString("PixelFormat", cfg.PixelFormat); err != nil {
			return nil, fmt.Errorf("camera: set pixel format: %w", err)
		}
	}

	if cfg.AcquisitionMode != "" {
		if err := cl.setString("AcquisitionMode", cfg.AcquisitionMode); err != nil {
			return nil, fmt.Errorf("camera: set acquisition mode: %w", err)
		}
	}

	if cfg.AutoExposure != nil {
		if cl.isFeatureAvailable("ExposureAuto") {
			mode := "Off"
			if *cfg.AutoExposure {
				mode = "Continuous"
			}
			if err := cl.setString("ExposureAuto", mode); err != nil {
				return nil, fmt.Errorf("camera: set auto exposure: %w", err)
			}
		} else {
			log.Warn("camera: auto exposure not available on this device", "ip", cfg.IPAddress)
		}
	}

	if cfg.AutoBrightness != nil && *cfg.AutoBrightness {
		if err := cl.setString("autoBrightnessMode", "Active"); err != nil {
			return nil, fmt.Errorf("camera: set auto brightness: %w", err)
		}
	}

	if cfg.ExposureMin != nil {
		if err := cl.setFloat("exposureAutoMinValue", float64(*cfg.ExposureMin)); err != nil {
			return nil, fmt.Errorf("camera: set exposure min: %w", err)
		}
	}
	if cfg.ExposureMax != nil {
		if err := cl.setFloat("exposureAutoMaxValue", float64(*cfg.ExposureMax)); err != nil {
			return nil, fmt.Errorf("camera: set exposure max: %w", err)
		}
	}

	if cfg.AutoGain != nil {
		if cl.isFeatureAvailable("GainAuto") {
			mode := "Off"
			if *cfg.AutoGain {
				mode = "Continuous"
			}
			if err := cl.setString("GainAuto", mode); err != nil {
				return nil, fmt.Errorf("camera: set auto gain: %w", err)
			}
		} else {
			log.Warn("camera: auto gain not available on this device", "ip", cfg.IPAddress)
		}
	}

	// Every camera gets on-demand white balance regardless of config.
	if err := cl.setString("BalanceWhiteAuto", "OnDemand"); err != nil {
		return nil, fmt.Errorf("camera: set white balance mode: %w", err)
	}

	// Trigger is set last so it does not get overwritten by the
	// configuration calls above.
	if cfg.Trigger != "" {
		if err := cl.setString("TriggerSource", cfg.Trigger); err != nil {
			return nil, fmt.Errorf("camera: set trigger source: %w", err)
		}
		if err := cl.setString("TriggerMode", "On"); err != nil {
			return nil, fmt.Errorf("camera: enable trigger mode: %w", err)
		}
	}

	// MTU/packet-size auto-negotiation last.
	if cfg.AutoPacketSize != nil && *cfg.AutoPacketSize {
		if err := cl.execute("GevSCPSFireTestPacket"); err != nil {
			return nil, fmt.Errorf("camera: negotiate packet size: %w", err)
		}
	}

	cam := &Camera{
		uuid:       uuid.New(),
		locationID: cfg.BedLocationID,
		cfg:        cfg,
		client:     cl,
		roi:        roi,
		bufferSize: int(roi.W) * int(roi.H) * bytesPerPixel,
		log:        log,
	}
	return cam, nil
}

// SetLocationID overrides the bed location id used to tag captured
// frames, set by the camera array core once it knows the camera's slot.
func (c *Camera) SetLocationID(id uint8) {
	c.locationID = &id
}

// StartStream creates the data connection, pushes one initial buffer and
// starts acquisition.
func (c *Camera) StartStream(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("camera: open data channel: %w", err)
	}
	c.dataConn = conn

	c.pushBuffer()

	if err := c.client.execute("AcquisitionStart"); err != nil {
		return fmt.Errorf("camera: start acquisition: %w", err)
	}
	return nil
}

// pushBuffer allocates a fresh image buffer sized exactly to the ROI and
// pixel format, ready to receive the next acquisition.
func (c *Camera) pushBuffer() {
	c.buffer = make([]byte, c.bufferSize)
}

// SoftwareTrigger issues one trigger command, causing the device to
// capture a single frame into the currently pushed buffer.
func (c *Camera) SoftwareTrigger() error {
	return c.client.execute("TriggerSoftware")
}

// RefreshWhiteBalance issues the on-demand white-balance command node, a
// categorically distinct GenICam command from the capture trigger.
func (c *Camera) RefreshWhiteBalance() error {
	return c.client.execute("BalanceWhiteAutoOnDemand")
}

// TryPopFrame checks for a completed buffer, waiting at most
// popFrameWait. It returns (frame, true, nil) if one is ready, (nil,
// false, nil) if the device has not yet filled the buffer, or a non-nil
// error on a transport fault.
func (c *Camera) TryPopFrame() ([]byte, bool, error) {
	// A deadline already in the past fails the read before it is
	// attempted, so the deadline sits just ahead of now.
	c.dataConn.SetReadDeadline(time.Now().Add(popFrameWait))

	n, _, err := c.dataConn.ReadFrom(c.buffer)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("camera: read data channel: %w", err)
	}

	frame := make([]byte, n)
	copy(frame, c.buffer[:n])
	return frame, true, nil
}

// RestartStream performs the stop-thread/start-thread/push-buffer
// recovery sequence used on a transient acquisition failure.
func (c *Camera) RestartStream(ctx context.Context) error {
	if err := c.client.execute("AcquisitionStop"); err != nil {
		c.log.Warn("camera: stop acquisition during restart failed", "error", err)
	}
	if c.dataConn != nil {
		c.dataConn.Close()
	}
	return c.StartStream(ctx)
}

// Stop halts acquisition and releases the data connection.
func (c *Camera) Stop() error {
	err := c.client.execute("AcquisitionStop")
	if c.dataConn != nil {
		c.dataConn.Close()
	}
	c.client.close()
	return err
}

// FPS returns the configured frame rate.
func (c *Camera) FPS() uint32 { return c.cfg.FPS }

// LocationID returns the camera's bed location tag, if any.
func (c *Camera) LocationID() *uint8 { return c.locationID }
