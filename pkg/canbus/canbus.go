// Package canbus provides a shared, mutex-guarded handle to a single raw
// SocketCAN interface. Every PDM on a crop bed's CAN trunk sends frames
// through the same Handle so that no two devices ever interleave writes to
// the same socket.
package canbus

import (
	"fmt"
	"net"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Frame is a CAN 2.0B frame: up to 8 data bytes addressed by a 29-bit
// extended identifier (J1939-style PGN addressing).
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// wireFrame mirrors the kernel's struct can_frame layout exactly so it can
// be written to the socket with a single syscall.
type wireFrame struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

const wireFrameSize = 16

const canEFFFlag = 0x80000000 // CAN_EFF_FLAG: frame uses a 29-bit extended ID

// Handle is a shared, mutually-exclusive connection to one CAN interface
// (e.g. "can0"). Safe for concurrent use by multiple PDM drivers.
type Handle struct {
	mu   sync.Mutex
	fd   int
	name string
}

// Open binds a raw AF_CAN socket to the named interface. The interface must
// already be up (e.g. `ip link set can0 up`); Open does not configure it.
func Open(ifaceName string) (*Handle, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("canbus: lookup interface %s: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: open raw socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %s: %w", ifaceName, err)
	}

	return &Handle{fd: fd, name: ifaceName}, nil
}

// Send writes one CAN frame to the bus. The mutex is held only for the
// duration of the write(2) syscall.
func (h *Handle) Send(frame Frame) error {
	id := frame.ID
	if id > 0x7FF {
		id |= canEFFFlag
	}

	raw := wireFrame{id: id, dlc: frame.DLC, data: frame.Data}
	buf := (*(*[wireFrameSize]byte)(unsafe.Pointer(&raw)))[:]

	h.mu.Lock()
	n, err := unix.Write(h.fd, buf)
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("canbus: write to %s: %w", h.name, err)
	}
	if n != wireFrameSize {
		return fmt.Errorf("canbus: short write to %s: wrote %d of %d bytes", h.name, n, wireFrameSize)
	}
	return nil
}

// Close releases the underlying socket.
func (h *Handle) Close() error {
	return unix.Close(h.fd)
}

// Name returns the interface name this handle is bound to.
func (h *Handle) Name() string {
	return h.name
}
