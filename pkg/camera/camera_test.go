package camera

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeDevice binds the fixed GigE Vision Control Protocol port (3956)
// that dial() always targets, answering every command "OK" (or a
// parseable value for queries/readbacks).
func startFakeDevice(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:3956")
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 1024)
		for {
			n, raddr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(string(buf[:n]))
			switch {
			case strings.HasPrefix(cmd, "IsAvailable"):
				conn.WriteTo([]byte("true\n"), raddr)
			case strings.HasPrefix(cmd, "GetInteger"):
				conn.WriteTo([]byte("1920\n"), raddr)
			default:
				conn.WriteTo([]byte("OK\n"), raddr)
			}
		}
	}()
	t.Cleanup(func() { conn.Close() })

	return "127.0.0.1"
}

func TestBuildRejectsFPSOutOfBounds(t *testing.T) {
	ip := startFakeDevice(t)

	cfg := &Config{FPS: 120, IPAddress: ip}
	_, err := Build(context.Background(), cfg, slog.Default())
	require.Error(t, err)
}

func TestBuildAcceptsFullConfiguration(t *testing.T) {
	ip := startFakeDevice(t)

	roi := &Roi{X: 0, Y: 0, W: 1920, H: 1080}
	autoTrue := true
	cfg := &Config{
		FPS:            30,
		IPAddress:      ip,
		Roi:            roi,
		PixelFormat:    "BayerRG8",
		Trigger:        "Software",
		AutoGain:       &autoTrue,
		AutoPacketSize: &autoTrue,
	}

	cam, err := Build(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, uint32(30), cam.FPS())
}

func TestBuildRejectsROINotDivisibleByBinningStep(t *testing.T) {
	ip := startFakeDevice(t)

	cfg := &Config{FPS: 30, IPAddress: ip, Roi: &Roi{W: 1921, H: 1080}}
	_, err := Build(context.Background(), cfg, slog.Default())
	require.Error(t, err)
}

func TestSoftwareTriggerAndRefreshWhiteBalanceSendDistinctCommands(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:3956")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	received := make(chan string, 2)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, raddr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(string(buf[:n]))
			received <- cmd
			conn.WriteTo([]byte("OK\n"), raddr)
		}
	}()

	cl, err := dial(context.Background(), "127.0.0.1", slog.Default())
	require.NoError(t, err)
	cam := &Camera{client: cl}

	require.NoError(t, cam.SoftwareTrigger())
	require.NoError(t, cam.RefreshWhiteBalance())

	first := <-received
	second := <-received
	assert.Equal(t, "Execute TriggerSoftware", first)
	assert.Equal(t, "Execute BalanceWhiteAutoOnDemand", second)
	assert.NotEqual(t, first, second)
}

func TestTryPopFrameNonBlockingTimeout(t *testing.T) {
	dataConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { dataConn.Close() })

	cam := &Camera{
		dataConn:   dataConn,
		buffer:     make([]byte, 16),
		bufferSize: 16,
	}

	frame, ok, err := cam.TryPopFrame()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, frame)
}

func TestTryPopFrameReturnsWrittenData(t *testing.T) {
	dataConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { dataConn.Close() })

	sender, err := net.Dial("udp", dataConn.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })

	payload := []byte("frame-bytes")
	_, err = sender.Write(payload)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	cam := &Camera{
		dataConn:   dataConn,
		buffer:     make([]byte, 64),
		bufferSize: 64,
	}

	frame, ok, err := cam.TryPopFrame()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, frame)
}
