// Package pdm implements the driver for one Power Distribution Module: a
// CAN-addressed device that actuates up to 12 output channels under a
// duty-cycle command. The driver holds a shared reference to the bus, it
// never owns it.
package pdm

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"

	"github.com/fieldworks/cropbed-control/pkg/canbus"
	"github.com/fieldworks/cropbed-control/pkg/logger"
)

// crc8Table is the checksum table used to guard each individual frame's
// payload against bit errors on the shared bus; any standard CRC-8
// polynomial works here since only corruption detection is required, not
// a specific J1939-mandated polynomial.
var crc8Table = crc8.MakeTable(crc8.CRC8)

// crc16Table checksums the whole ordered configuration table Initialise
// transmits, layered on top of the per-frame CRC8 the same way J1939
// transport-protocol framing checks both the individual segment and the
// reassembled multi-packet message.
var crc16Table = crc16.MakeTable(crc16.CRC16_XMODEM)

// configCommitPGN is the final frame Initialise sends once every
// function/channel config frame has gone out, carrying the CRC16 of the
// whole table so the PDM can detect a dropped or reordered frame that a
// per-frame CRC8 alone would not catch.
const configCommitPGN = 128

// Pdm is one Power Distribution Module addressed on a shared CAN bus.
type Pdm struct {
	uuid          uuid.UUID
	address       uint8
	bedLocationID uint8
	config        *Config
	bus           *canbus.Handle
	log           *logger.Logger
}

// New creates a Pdm from its configuration. The bus is not attached until
// Initialise is called.
func New(cfg *Config, log *logger.Logger) *Pdm {
	return &Pdm{
		uuid:          uuid.New(),
		address:       cfg.Address,
		bedLocationID: cfg.BedLocationID,
		config:        cfg,
		log:           log,
	}
}

// Address returns the PDM's CAN bus source address.
func (p *Pdm) Address() uint8 { return p.address }

// Initialise binds the shared CAN handle and pushes the function-config
// table followed by the channel-config table, in ascending channel order.
// Must complete before any Actuate call; any transmit failure here is
// fatal (configuration fatal, per the error handling design).
func (p *Pdm) Initialise(bus *canbus.Handle) error {
	p.bus = bus

	var table []byte

	funcChannels := sortedFunctionKeys(p.config.OutputFunctionConfig)
	for _, ch := range funcChannels {
		cfg := p.config.OutputFunctionConfig[ch]
		payload := boolToByte(cfg.PowerOnResetEnable)
		if err := p.sendFunctionConfig(ch, cfg); err != nil {
			return fmt.Errorf("pdm %d: configure output function ch %d: %w", p.address, ch, err)
		}
		table = append(table, ch, payload)
	}

	chanChannels := sortedChannelKeys(p.config.OutputChannelsConfig)
	for _, ch := range chanChannels {
		cfg := p.config.OutputChannelsConfig[ch]
		payload := boolToByte(cfg.AutomaticReset)
		if err := p.sendChannelConfig(ch, cfg); err != nil {
			return fmt.Errorf("pdm %d: configure output channel %d: %w", p.address, ch, err)
		}
		table = append(table, ch, payload)
	}

	checksum := crc16.Checksum(table, crc16Table)
	if err := p.sendConfigCommit(checksum); err != nil {
		return fmt.Errorf("pdm %d: commit config table: %w", p.address, err)
	}

	if p.log != nil {
		p.log.DebugPDMMsg("pdm initialised", "address", p.address, "bed_location_id", p.bedLocationID,
			"functions", len(funcChannels), "channels", len(chanChannels), "table_checksum", checksum)
	}
	return nil
}

func sortedFunctionKeys(m map[uint8]FunctionConfig) []uint8 {
	keys := make([]uint8, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedChannelKeys(m map[uint8]ChannelConfig) []uint8 {
	keys := make([]uint8, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// sendFunctionConfig pushes one PGN 126-style configuration frame for a
// single channel's output function table.
func (p *Pdm) sendFunctionConfig(channel uint8, cfg FunctionConfig) error {
	frame := p.buildConfigFrame(126, channel, boolToByte(cfg.PowerOnResetEnable))
	return p.bus.Send(frame)
}

// sendChannelConfig pushes one PGN 127-style configuration frame for a
// single channel's load/feedback configuration.
func (p *Pdm) sendChannelConfig(channel uint8, cfg ChannelConfig) error {
	frame := p.buildConfigFrame(127, channel, boolToByte(cfg.AutomaticReset))
	return p.bus.Send(frame)
}

// sendConfigCommit pushes the table-level CRC16 commit frame that closes
// out Initialise.
func (p *Pdm) sendConfigCommit(checksum uint16) error {
	return p.bus.Send(p.buildCommitFrame(checksum))
}

// Actuate sends one CAN frame that sets the given channels to the given
// duty (0-100) under the given PGN. Only channels 1-12 are encoded;
// any other channel number is ignored, so callers partition channels by
// PDM first, per the crop bed spray core's partitioning rule.
func (p *Pdm) Actuate(pgn uint16, channels []uint8, duty float64) error {
	if p.bus == nil {
		return fmt.Errorf("pdm %d: actuate before initialise", p.address)
	}
	if duty < 0 || duty > 100 {
		return fmt.Errorf("pdm %d: duty %f out of range [0,100]", p.address, duty)
	}

	frame := p.buildActuationFrame(pgn, channels, duty)
	if err := p.bus.Send(frame); err != nil {
		return fmt.Errorf("pdm %d: actuate: %w", p.address, err)
	}
	if p.log != nil {
		p.log.DebugPDMMsg("actuate", "address", p.address, "pgn", pgn, "channels", channels, "duty", duty)
	}
	return nil
}

// buildActuationFrame encodes a channel bitmask (bit i set means channel
// i+1 is addressed) and a duty byte (0-200, half-percent units) into an
// extended CAN ID carrying the PDM's source address, with a CRC8
// checksum over the payload in the final data byte.
func (p *Pdm) buildActuationFrame(pgn uint16, channels []uint8, duty float64) canbus.Frame {
	var mask uint16
	for _, ch := range channels {
		if ch >= 1 && ch <= 12 {
			mask |= 1 << (ch - 1)
		}
	}

	dutyByte := uint8(duty * 2) // half-percent resolution, matches ix-3212 style PGN17 payloads

	data := [8]byte{
		byte(mask & 0xFF),
		byte(mask >> 8),
		dutyByte,
		0, 0, 0, 0,
		0,
	}
	data[7] = crc8.Checksum(data[:7], crc8Table)

	return canbus.Frame{
		ID:   canID(pgn, p.address),
		DLC:  8,
		Data: data,
	}
}

func (p *Pdm) buildConfigFrame(pgn uint16, channel uint8, payload byte) canbus.Frame {
	data := [8]byte{channel, payload, 0, 0, 0, 0, 0, 0}
	data[7] = crc8.Checksum(data[:7], crc8Table)
	return canbus.Frame{
		ID:   canID(pgn, p.address),
		DLC:  8,
		Data: data,
	}
}

// buildCommitFrame carries the CRC16 of the whole config table Initialise
// just sent, in little-endian order in the first two data bytes. Like
// every other frame it still carries its own per-frame CRC8 in the final
// byte, giving the PDM both layers of the J1939-style integrity check.
func (p *Pdm) buildCommitFrame(checksum uint16) canbus.Frame {
	data := [8]byte{byte(checksum & 0xFF), byte(checksum >> 8), 0, 0, 0, 0, 0, 0}
	data[7] = crc8.Checksum(data[:7], crc8Table)
	return canbus.Frame{
		ID:   canID(configCommitPGN, p.address),
		DLC:  8,
		Data: data,
	}
}

// canID builds a J1939-style 29-bit extended CAN identifier: default
// priority 6, the given PGN, and the PDM's source address.
func canID(pgn uint16, sourceAddr uint8) uint32 {
	const defaultPriority = 6
	return (uint32(defaultPriority) << 26) | (uint32(pgn) << 8) | uint32(sourceAddr)
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
