// Package lighting implements the crop bed lighting core: a degenerate
// variant of the spray core with no queue and no heartbeat. Each inbound
// message is actuated immediately against PDM index 0.
package lighting

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/fieldworks/cropbed-control/pkg/canbus"
	"github.com/fieldworks/cropbed-control/pkg/logger"
	"github.com/fieldworks/cropbed-control/pkg/messages"
	"github.com/fieldworks/cropbed-control/pkg/pdm"
)

const actuationPGN = 17

// Core owns a crop bed's PDM map and the shared CAN bus handle they
// transmit over. Unlike spray.Core it holds no queue.
type Core struct {
	cropBedID uint8
	bus       *canbus.Handle
	pdms      map[uint8]*pdm.Pdm
	log       *logger.Logger
}

// NewCore builds a Core from configuration, opening the CAN bus and
// initialising every configured PDM. Any failure here is fatal.
func NewCore(cfg *Config, log *logger.Logger) (*Core, error) {
	bus, err := canbus.Open(cfg.CanbusID)
	if err != nil {
		return nil, fmt.Errorf("lighting: open can bus %s: %w", cfg.CanbusID, err)
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
		cropBedID: cfg.CropBedID,
		bus:       bus,
		pdms:      pdms,
		log:       log,
	}, nil
}

// Run starts the TCP ingestion listener, blocking until ctx is cancelled.
func (c *Core) Run(ctx context.Context, port uint16) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("lighting: listen on port %d: %w", port, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	c.acceptLoop(ctx, ln)
	return nil
}

// acceptLoop accepts connections and hands each to a long-lived
// per-connection read loop, unlike the spray core's one-shot handling:
// the lighting producer is a steady controller that benefits from
// persistent sockets.
func (c *Core) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				c.log.Error("lighting: accept failed", "error", err)
				continue
			}
		}
		go c.handleConnection(conn)
	}
}

// handleConnection reads newline-delimited messages until the connection
// closes, actuating each one immediately.
func (c *Core) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.handleMessage(line)
		}
		if err != nil {
			if err != io.EOF {
				c.log.Warn("lighting: connection read error", "error", err)
			}
			return
		}
	}
}

func (c *Core) handleMessage(line []byte) {
	var msg messages.LightMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		c.log.Warn("lighting: malformed inbound message", "error", err)
		return
	}

	duty := 0.0
	if msg.IsOn {
		duty = 100.0
	}

	channels := make([]uint8, 0, len(msg.Channels))
	for _, ch := range msg.Channels {
		channels = append(channels, uint8(ch))
	}

	p, ok := c.pdms[0]
	if !ok {
		c.log.Warn("lighting: no pdm at index 0")
		return
	}
	if err := p.Actuate(actuationPGN, channels, duty); err != nil {
		c.log.Error("lighting: actuate failed", "error", err)
	}
}
