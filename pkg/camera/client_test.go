package camera

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDevice answers every command with a canned response, echoing
// "true" to IsAvailable queries and "42" to GetInteger queries so the
// round-trip parsers have something real to parse.
func fakeDevice(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(string(buf[:n]))
			switch {
			case strings.HasPrefix(cmd, "IsAvailable"):
				conn.WriteTo([]byte("true\n"), addr)
			case strings.HasPrefix(cmd, "GetInteger"):
				conn.WriteTo([]byte("42\n"), addr)
			default:
				conn.WriteTo([]byte("OK\n"), addr)
			}
		}
	}()

	t.Cleanup(func() { conn.Close() })
	_, port, _ := net.SplitHostPort(conn.LocalAddr().String())
	return port
}

func TestClientCommandRoundTrip(t *testing.T) {
	port := fakeDevice(t)
	// dial() hardcodes the GigE Vision control port (3956); reach the fake
	// device directly through its client fields instead of through dial().
	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{
		addr:    conn.RemoteAddr().String(),
		conn:    conn,
		reader:  bufio.NewReader(conn),
		logger:  slog.Default(),
		timeout: 2 * time.Second,
	}

	resp, err := c.command("Execute AcquisitionStart")
	require.NoError(t, err)
	require.Equal(t, "OK", resp)

	require.True(t, c.isFeatureAvailable("ExposureAuto"))

	val, err := c.getInteger("Width")
	require.NoError(t, err)
	require.Equal(t, int64(42), val)
}

func TestDialFailsOnInvalidAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := dial(ctx, "\x00invalid", slog.Default())
	require.Error(t, err)
}
