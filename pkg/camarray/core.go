// Package camarray implements the camera array capture core: N cameras
// running concurrent capture loops synchronised at start and stop by a
// shared barrier, feeding a writer sink over a shared frame channel.
package camarray

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldworks/cropbed-control/pkg/camera"
	"github.com/fieldworks/cropbed-control/pkg/writer"
)

// frameChannelCapacity is generous on purpose: backpressure in this
// system is provided by the writer's ring-buffered handle tracking, not
// by the frame channel's capacity (see design notes on shared resources).
const frameChannelCapacity = 256

// configTickInterval is how often each worker re-issues the on-demand
// white-balance command; some sensors lack a continuous auto white
// balance node and need it re-triggered periodically.
const configTickInterval = 5 * time.Second

// Core owns the camera map, the start/stop barrier and the writer sink
// for one crop bed's camera array.
type Core struct {
	cropBedID uint8
	cameras   map[uint8]*camera.Camera
	sink      *writer.Sink

	barrier  *Barrier
	stopFlag atomic.Bool
	wg       sync.WaitGroup

	log *slog.Logger
}

// NewCore builds every configured camera (build-time device faults are
// fatal) and the writer sink rooted at cfg.ImagePath.
func NewCore(ctx context.Context, cfg *Config, log *slog.Logger) (*Core, error) {
	indices := make([]uint8, 0, len(cfg.CameraConfigFiles))
	for idx := range cfg.CameraConfigFiles {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	cameras := make(map[uint8]*camera.Camera, len(indices))
	for _, idx := range indices {
		camCfg, err := camera.LoadConfig(cfg.CameraConfigFiles[idx])
		if err != nil {
			return nil, err
		}
		cam, err := camera.Build(ctx, camCfg, log)
		if err != nil {
			return nil, fmt.Errorf("camarray: build camera %d: %w", idx, err)
		}
		cam.SetLocationID(idx)
		cameras[idx] = cam
	}

	sink := writer.NewSink(cfg.ImagePath, cfg.CropBedID, log)

	return &Core{
		cropBedID: cfg.CropBedID,
		cameras:   cameras,
		sink:      sink,
		barrier:   NewBarrier(len(cameras)),
		log:       log,
	}, nil
}

// Run starts every camera worker and the writer sink, blocking until ctx
// is cancelled, then waits for all workers to rendezvous at the shutdown
// barrier before returning.
func (c *Core) Run(ctx context.Context) error {
	frames := make(chan writer.FramePayload, frameChannelCapacity)

	var sinkWg sync.WaitGroup
	sinkWg.Add(1)
	go func() {
		defer sinkWg.Done()
		c.sink.Run(frames)
	}()

	indices := make([]uint8, 0, len(c.cameras))
	for idx := range c.cameras {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		cam := c.cameras[idx]
		c.wg.Add(1)
		go func(idx uint8, cam *camera.Camera) {
			defer c.wg.Done()
			c.runWorker(ctx, idx, cam, frames)
		}(idx, cam)
	}

	<-ctx.Done()
	c.stopFlag.Store(true)
	c.wg.Wait()
	close(frames)
	sinkWg.Wait()
	return nil
}

// runWorker implements one camera's full lifecycle: build the stream,
// rendezvous at the start barrier, run the capture loop until the stop
// flag is observed, then rendezvous at the shutdown barrier.
func (c *Core) runWorker(ctx context.Context, idx uint8, cam *camera.Camera, frames chan<- writer.FramePayload) {
	if err := cam.StartStream(ctx); err != nil {
		c.log.Error("camarray: failed to start camera stream", "index", idx, "error", err)
		c.barrier.Wait()
		c.barrier.Wait()
		return
	}

	c.barrier.Wait()

	c.captureLoop(idx, cam, frames)

	if err := cam.Stop(); err != nil {
		c.log.Warn("camarray: error stopping camera", "index", idx, "error", err)
	}
	c.barrier.Wait()
}

// captureLoop runs one camera's trigger/pop/pace cycle until the stop
// flag is set.
func (c *Core) captureLoop(idx uint8, cam *camera.Camera, frames chan<- writer.FramePayload) {
	interval := time.Second / time.Duration(cam.FPS())
	lastConfigTick := time.Now()

	for !c.stopFlag.Load() {
		if time.Since(lastConfigTick) > configTickInterval {
			if err := cam.RefreshWhiteBalance(); err != nil {
				c.log.Warn("camarray: white balance refresh failed", "index", idx, "error", err)
			}
			lastConfigTick = time.Now()
		}

		cycleStart := time.Now()
		if err := cam.SoftwareTrigger(); err != nil {
			c.log.Warn("camarray: software trigger failed", "index", idx, "error", err)
		}

		frame, ok, err := cam.TryPopFrame()
		if err != nil {
			c.log.Error("camarray: pop frame failed, restarting stream", "index", idx, "error", err)
			if restartErr := cam.RestartStream(context.Background()); restartErr != nil {
				c.log.Error("camarray: restart stream failed", "index", idx, "error", restartErr)
			}
			continue
		}
		if !ok {
			if restartErr := cam.RestartStream(context.Background()); restartErr != nil {
				c.log.Error("camarray: restart stream failed", "index", idx, "error", restartErr)
			}
			continue
		}

		elapsed := time.Since(cycleStart)
		if elapsed < interval {
			locationID := cam.LocationID()
			payload := writer.FramePayload{
				Image:      frame,
				CapturedAt: time.Now().UTC(),
				LocationID: locationID,
			}
			select {
			case frames <- payload:
			default:
				// Backpressure has collapsed: the writer sink is not
				// keeping up with the configured frame rate at all.
				// Per the error handling design this is fatal, not
				// recoverable by retrying.
				c.log.Error("camarray: frame channel send failed, writer sink unavailable", "index", idx)
				panic(fmt.Sprintf("camarray: frame channel full for camera %d, writer sink backpressure collapsed", idx))
			}
			time.Sleep(interval - elapsed)
		}
		// Missing the deadline: no sleep, the next cycle starts immediately.
	}
}
