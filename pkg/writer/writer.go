// Package writer implements the camera array's frame writer sink: it
// drains the shared frame channel and spawns one short-lived goroutine
// per frame to encode and persist the image, bounding the number of
// in-flight write handles it tracks with a fixed-capacity ring buffer.
package writer

import (
	"container/ring"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ringCapacity bounds the number of write-task handles the sink tracks at
// once; pushing a 129th handle evicts (drops) the oldest, which is
// equivalent to fire-and-forget for old writers.
const ringCapacity = 128

// FramePayload is one captured image to persist.
type FramePayload struct {
	Image      []byte
	CapturedAt time.Time
	LocationID *uint8
}

// handle tracks one in-flight write task. Done is closed when the task
// finishes; the ring buffer never actually waits on it, it exists purely
// so the in-flight count invariant is observable (e.g. in tests).
type handle struct {
	done chan struct{}
}

// Sink owns the frame channel receiver and the on-disk base path.
type Sink struct {
	basePath  string
	cropBedID uint8

	mu   sync.Mutex
	ring *ring.Ring

	log *slog.Logger
}

// NewSink returns a writer sink rooted at <basePath>/<cropBedID>.
func NewSink(basePath string, cropBedID uint8, log *slog.Logger) *Sink {
	r := ring.New(ringCapacity)
	for i := 0; i < ringCapacity; i++ {
		r.Value = (*handle)(nil)
		r = r.Next()
	}
	return &Sink{
		basePath:  basePath,
		cropBedID: cropBedID,
		ring:      r,
		log:       log,
	}
}

// Run drains frames until the channel is closed (all camera workers have
// stopped sending), spawning one write goroutine per frame.
func (s *Sink) Run(frames <-chan FramePayload) {
	for payload := range frames {
		s.spawnWrite(payload)
	}
}

func (s *Sink) spawnWrite(payload FramePayload) {
	h := &handle{done: make(chan struct{})}
	s.pushHandle(h)

	go func() {
		defer close(h.done)
		if err := s.writeFrame(payload); err != nil {
			s.log.Error("writer: failed to save frame", "error", err)
		}
	}()
}

// pushHandle records a new in-flight handle in the ring buffer, evicting
// whatever handle currently occupies that slot (the oldest tracked one,
// ringCapacity pushes ago).
func (s *Sink) pushHandle(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring.Value = h
	s.ring = s.ring.Next()
}

// InFlight returns the number of handles currently tracked (<= ringCapacity).
func (s *Sink) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	s.ring.Do(func(v any) {
		if h, _ := v.(*handle); h != nil {
			select {
			case <-h.done:
			default:
				count++
			}
		}
	})
	return count
}

func (s *Sink) writeFrame(payload FramePayload) error {
	locationDir := ""
	if payload.LocationID != nil {
		locationDir = fmt.Sprintf("%d", *payload.LocationID)
	}

	dir := filepath.Join(s.basePath, fmt.Sprintf("%d", s.cropBedID), locationDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: mkdir %s: %w", dir, err)
	}

	filename := payload.CapturedAt.UTC().Format(time.RFC3339Nano) + ".png"
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writer: create %s: %w", path, err)
	}
	defer f.Close()

	img := decodeRawImage(payload.Image)
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("writer: encode %s: %w", path, err)
	}
	return nil
}

// decodeRawImage wraps a raw single-channel (BAYER_RG_8) capture buffer
// in an image.Gray so it can be PNG-encoded; this system does not debayer
// on the control layer, that happens downstream.
func decodeRawImage(raw []byte) image.Image {
	side := approxSquareSide(len(raw))
	img := image.NewGray(image.Rect(0, 0, side, side))
	copy(img.Pix, raw)
	return img
}

func approxSquareSide(n int) int {
	side := 1
	for side*side < n {
		side++
	}
	if side == 0 {
		return 1
	}
	return side
}
