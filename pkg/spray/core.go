// Package spray implements the crop bed power core: a time-ordered
// priority queue of channel actuations fired against PDMs within a
// microsecond-scale deadline, with a heartbeat that keeps the PDMs' CAN
// watchdog from tripping during idle periods.
package spray

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/fieldworks/cropbed-control/pkg/canbus"
	"github.com/fieldworks/cropbed-control/pkg/logger"
	"github.com/fieldworks/cropbed-control/pkg/messages"
	"github.com/fieldworks/cropbed-control/pkg/pdm"
)

const (
	// sprayBound is the tolerance window around a queue entry's fire time
	// within which firing is accepted as on-time.
	sprayBound = 5 * time.Microsecond

	// heartbeatInterval is the maximum gap between actuations before the
	// core must re-assert a zero-duty heartbeat to suppress the PDMs'
	// loss-of-communication failsafe.
	heartbeatInterval = 500 * time.Millisecond

	// longSprayThreshold is the PDM's own loss-of-CAN window: sprays
	// longer than this must be padded with repeat pulses.
	longSprayThreshold = 1 * time.Second

	// pulseInterval is the repeat spacing for long-spray "on" pulses;
	// not parameterised upstream, see DESIGN.md Open Question decisions.
	pulseInterval = 100 * time.Millisecond

	actuationPGN = 17
)

// Core owns a crop bed's PDM map, fire-time priority queue and the shared
// CAN bus handle they transmit over.
type Core struct {
	cropBedID  uint8
	bus        *canbus.Handle
	pdms       map[uint8]*pdm.Pdm
	channelMap map[uint8]ChannelMapping

	mu       sync.Mutex
	queue    *Queue
	lastFire time.Time

	log *logger.Logger
}

// NewCore builds a Core from configuration. The CAN bus is opened and
// every configured PDM is initialised before NewCore returns; any
// failure here is a configuration/device-init fatal error.
func NewCore(cfg *Config, log *logger.Logger) (*Core, error) {
	bus, err := canbus.Open(cfg.CanbusID)
	if err != nil {
		return nil, fmt.Errorf("spray: open can bus %s: %w", cfg.CanbusID, err)
	}

	pdmIndices := make([]uint8, 0, len(cfg.PDMConfigFiles))
	for idx := range cfg.PDMConfigFiles {
		pdmIndices = append(pdmIndices, idx)
	}
	sort.Slice(pdmIndices, func(i, j int) bool { return pdmIndices[i] < pdmIndices[j] })

	pdms := make(map[uint8]*pdm.Pdm, len(cfg.PDMConfigFiles))
	for _, idx := range pdmIndices {
		path := cfg.PDMConfigFiles[idx]
		pdmCfg, err := pdm.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		p := pdm.New(pdmCfg, log)
		if err := p.Initialise(bus); err != nil {
			return nil, err
		}
		pdms[idx] = p
	}

	return &Core{
		cropBedID:  cfg.CropBedID,
		bus:        bus,
		pdms:       pdms,
		channelMap: cfg.ChannelMap,
		queue:      NewQueue(),
		lastFire:   time.Now(),
		log:        log,
	}, nil
}

// Run starts the TCP ingestion listener and the firing loop, blocking
// until ctx is cancelled.
func (c *Core) Run(ctx context.Context, port uint16) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("spray: listen on port %d: %w", port, err)
	}
	defer ln.Close()

	go c.acceptLoop(ctx, ln)

	c.firingLoop(ctx)
	return nil
}

// acceptLoop spawns one short-lived goroutine per accepted connection:
// read one newline-delimited message, parse, enqueue, close.
func (c *Core) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				c.log.Error("spray: accept failed", "error", err)
				continue
			}
		}
		go c.handleConnection(conn)
	}
}

func (c *Core) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		c.log.Warn("spray: failed to read message", "error", err)
		return
	}

	var msg messages.SprayMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		c.log.Warn("spray: malformed inbound message", "error", err)
		return
	}

	c.ingest(msg)
}

// ingest applies the channel map, drops stale messages, and enqueues
// either a short two-entry pair or a padded sequence of repeat pulses for
// long sprays.
func (c *Core) ingest(msg messages.SprayMessage) {
	now := time.Now()
	if !msg.StartSprayTime.After(now) {
		c.log.Warn("spray: dropping stale message", "start", msg.StartSprayTime)
		return
	}

	channels := make([]uint8, 0, len(msg.ChannelsToOpen))
	for _, raw := range msg.ChannelsToOpen {
		channels = append(channels, c.mapChannel(uint8(raw)+1))
	}

	delta := msg.EndSprayTime.Sub(msg.StartSprayTime)

	c.mu.Lock()
	defer c.mu.Unlock()

	if delta > longSprayThreshold {
		timeToFire := msg.StartSprayTime
		remaining := delta
		for remaining > pulseInterval {
			c.queue.Push(&QueueEntry{
				Channels:      channels,
				FireTime:      timeToFire.Add(pulseInterval),
				IsOn:          true,
				OriginalStart: msg.StartSprayTime,
				OriginalEnd:   msg.EndSprayTime,
			})
			timeToFire = timeToFire.Add(pulseInterval)
			remaining -= pulseInterval
		}
		c.queue.Push(&QueueEntry{
			Channels:      channels,
			FireTime:      msg.EndSprayTime,
			IsOn:          false,
			OriginalStart: msg.StartSprayTime,
			OriginalEnd:   msg.EndSprayTime,
		})
	} else {
		c.queue.Push(&QueueEntry{
			Channels:      channels,
			FireTime:      msg.StartSprayTime,
			IsOn:          true,
			OriginalStart: msg.StartSprayTime,
			OriginalEnd:   msg.EndSprayTime,
		})
		c.queue.Push(&QueueEntry{
			Channels:      channels,
			FireTime:      msg.EndSprayTime,
			IsOn:          false,
			OriginalStart: msg.StartSprayTime,
			OriginalEnd:   msg.EndSprayTime,
		})
	}
}

// mapChannel applies the optional channel map. A miss when the map is set
// indicates a wiring/config mismatch and is fatal.
func (c *Core) mapChannel(channel uint8) uint8 {
	if c.channelMap == nil {
		return channel
	}
	mapping, ok := c.channelMap[channel]
	if !ok {
		c.log.Error("spray: channel map miss", "channel", channel)
		panic(fmt.Sprintf("spray: no channel map entry for channel %d", channel))
	}
	return mapping.Wired
}

// firingLoop runs until ctx is cancelled. Each iteration peeks the
// minimum-fire-time entry: drops it if already past, fires it if within
// sprayBound, otherwise leaves it queued for the next iteration. When the
// queue is empty or nothing is due, it also checks the heartbeat.
func (c *Core) firingLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		entry := c.queue.PeekMin()
		now := time.Now()

		switch {
		case entry == nil:
			c.mu.Unlock()
		case entry.FireTime.Before(now):
			c.queue.PopMin()
			c.mu.Unlock()
		default:
			delta := entry.FireTime.Sub(now)
			if delta < sprayBound {
				c.queue.PopMin()
				c.fireEntry(entry)
				c.lastFire = time.Now()
				c.mu.Unlock()
				continue
			}
			c.mu.Unlock()
		}

		c.maybeHeartbeat()
		runtime.Gosched()
	}
}

// fireEntry partitions channels by the fixed PDM_0={1..12}/PDM_1={13..24}
// rule and actuates each owning PDM.
func (c *Core) fireEntry(entry *QueueEntry) {
	duty := 0.0
	if entry.IsOn {
		duty = 100.0
	}

	pdm0Channels, pdm1Channels := partitionChannels(entry.Channels)

	if len(pdm0Channels) > 0 {
		if p, ok := c.pdms[0]; ok {
			if err := p.Actuate(actuationPGN, pdm0Channels, duty); err != nil {
				c.log.Error("spray: actuate pdm 0 failed", "error", err)
			}
		}
	}
	if len(pdm1Channels) > 0 {
		if p, ok := c.pdms[1]; ok {
			if err := p.Actuate(actuationPGN, pdm1Channels, duty); err != nil {
				c.log.Error("spray: actuate pdm 1 failed", "error", err)
			}
		}
	}
}

// partitionChannels splits a channel list into PDM 0's share ({c <= 12})
// and PDM 1's share ({c > 12}, shifted down by 12). Identical for both
// single- and multi-channel inputs (see DESIGN.md Open Question
// decisions).
func partitionChannels(channels []uint8) (pdm0, pdm1 []uint8) {
	for _, ch := range channels {
		if ch <= 12 {
			pdm0 = append(pdm0, ch)
		} else {
			pdm1 = append(pdm1, ch-12)
		}
	}
	return pdm0, pdm1
}

// maybeHeartbeat re-asserts a zero-duty actuation on both PDMs if too
// long has elapsed since the last real actuation or heartbeat.
func (c *Core) maybeHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastFire) <= heartbeatInterval {
		return
	}

	allChannels := make([]uint8, 12)
	for i := range allChannels {
		allChannels[i] = uint8(i + 1)
	}

	for idx, p := range c.pdms {
		if err := p.Actuate(actuationPGN, allChannels, 0.0); err != nil {
			c.log.Error("spray: heartbeat actuate failed", "pdm_index", idx, "error", err)
		}
	}
	c.lastFire = time.Now()
}
