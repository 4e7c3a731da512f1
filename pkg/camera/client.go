package camera

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// client is a minimal GigE-Vision-flavoured control connection: a
// request/response protocol over a UDP "control channel" carrying
// GenICam-style feature reads/writes (SetInteger, GetInteger, SetFloat,
// SetString, ...) and command execution. Image payloads do not pass
// through it; they arrive on the Camera's separate data connection.
// No Go binding for the real GigE Vision Control Protocol exists in this
// codebase's dependency set, so this client is hand-written in the same
// idiom as this repo's other network clients: a buffered connection and a
// small line-oriented command/response exchange.
type client struct {
	addr    string
	conn    net.Conn
	reader  *bufio.Reader
	logger  *slog.Logger
	timeout time.Duration
}

func dial(ctx context.Context, ipAddress string, logger *slog.Logger) (*client, error) {
	addr := net.JoinHostPort(ipAddress, "3956") // GigE Vision Control Protocol default port

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("camera: dial %s: %w", addr, err)
	}

	return &client{
		addr:    addr,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		logger:  logger,
		timeout: 2 * time.Second,
	}, nil
}

func (c *client) command(cmd string) (string, error) {
	c.conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("camera: write command %q: %w", cmd, err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("camera: read response to %q: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}

// setInteger writes an integer-valued GenICam feature (e.g. Width,
// Height, OffsetX, OffsetY, GevSCPSPacketSize).
func (c *client) setInteger(feature string, value int64) error {
	_, err := c.command(fmt.Sprintf("SetInteger %s %d", feature, value))
	return err
}

// getInteger reads back an integer-valued feature.
func (c *client) getInteger(feature string) (int64, error) {
	resp, err := c.command(fmt.Sprintf("GetInteger %s", feature))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp, 10, 64)
}

// setFloat writes a float-valued GenICam feature (e.g.
// exposureAutoMinValue, AcquisitionFrameRate).
func (c *client) setFloat(feature string, value float64) error {
	_, err := c.command(fmt.Sprintf("SetFloat %s %f", feature, value))
	return err
}

// setString writes a string/enum-valued GenICam feature (e.g.
// TriggerSource, PixelFormat, BalanceWhiteAuto).
func (c *client) setString(feature, value string) error {
	_, err := c.command(fmt.Sprintf("SetString %s %s", feature, value))
	return err
}

// isFeatureAvailable reports whether the device's GenICam node map
// exposes the named feature; not every sensor implements the full
// standard feature set.
func (c *client) isFeatureAvailable(feature string) bool {
	resp, err := c.command(fmt.Sprintf("IsAvailable %s", feature))
	if err != nil {
		return false
	}
	return resp == "true"
}

// execute invokes a GenICam command node (e.g. TriggerSoftware,
// AcquisitionStart, AcquisitionStop).
func (c *client) execute(command string) error {
	_, err := c.command("Execute " + command)
	return err
}

func (c *client) close() error {
	return c.conn.Close()
}
