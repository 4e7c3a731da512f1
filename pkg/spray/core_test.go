package spray

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/cropbed-control/pkg/logger"
	"github.com/fieldworks/cropbed-control/pkg/messages"
)

func newTestCore(t *testing.T, channelMap map[uint8]ChannelMapping) *Core {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return &Core{
		queue:      NewQueue(),
		channelMap: channelMap,
		lastFire:   time.Now(),
		log:        log,
	}
}

func TestPartitionChannels(t *testing.T) {
	pdm0, pdm1 := partitionChannels([]uint8{1, 12, 13, 24})
	assert.Equal(t, []uint8{1, 12}, pdm0)
	assert.Equal(t, []uint8{1, 12}, pdm1)
}

func TestPartitionChannelsSingleChannel(t *testing.T) {
	// Single- and multi-channel inputs share the same partition logic;
	// see DESIGN.md Open Question decisions.
	pdm0, pdm1 := partitionChannels([]uint8{7})
	assert.Equal(t, []uint8{7}, pdm0)
	assert.Empty(t, pdm1)

	pdm0, pdm1 = partitionChannels([]uint8{19})
	assert.Empty(t, pdm0)
	assert.Equal(t, []uint8{7}, pdm1)
}

func TestIngestShortSprayPushesOnAndOff(t *testing.T) {
	c := newTestCore(t, nil)
	start := time.Now().Add(time.Second)
	end := start.Add(500 * time.Millisecond)

	c.ingest(messages.SprayMessage{
		ChannelsToOpen: []int{0},
		StartSprayTime: start,
		EndSprayTime:   end,
	})

	require.Equal(t, 2, c.queue.Len())
	on := c.queue.PopMin()
	assert.True(t, on.IsOn)
	assert.Equal(t, start, on.FireTime)

	off := c.queue.PopMin()
	assert.False(t, off.IsOn)
	assert.Equal(t, end, off.FireTime)
}

func TestIngestLongSprayPadsRepeatPulses(t *testing.T) {
	c := newTestCore(t, nil)
	start := time.Now().Add(time.Second)
	end := start.Add(1250 * time.Millisecond) // > longSprayThreshold (1s)

	c.ingest(messages.SprayMessage{
		ChannelsToOpen: []int{0},
		StartSprayTime: start,
		EndSprayTime:   end,
	})

	// remaining = 1250ms; the loop pushes an on-pulse while remaining >
	// pulseInterval (100ms): 1250 -> 1150 -> ... -> 150 -> 50 (stop),
	// producing on-pulses at +100,+200,...,+1200ms (12 pulses), then one
	// final off at end.
	require.Equal(t, 13, c.queue.Len())

	var lastOn time.Time
	for i := 0; i < 12; i++ {
		e := c.queue.PopMin()
		assert.True(t, e.IsOn)
		lastOn = e.FireTime
	}
	assert.True(t, lastOn.Before(end))

	off := c.queue.PopMin()
	assert.False(t, off.IsOn)
	assert.Equal(t, end, off.FireTime)
	assert.Equal(t, 0, c.queue.Len())
}

func TestIngestDropsStaleMessage(t *testing.T) {
	c := newTestCore(t, nil)
	past := time.Now().Add(-time.Second)

	c.ingest(messages.SprayMessage{
		ChannelsToOpen: []int{0},
		StartSprayTime: past,
		EndSprayTime:   past.Add(time.Second),
	})

	assert.Equal(t, 0, c.queue.Len())
}

func TestIngestAppliesChannelMap(t *testing.T) {
	c := newTestCore(t, map[uint8]ChannelMapping{1: {Wired: 5, PDMIndex: 0}})
	start := time.Now().Add(time.Second)
	end := start.Add(200 * time.Millisecond)

	c.ingest(messages.SprayMessage{
		ChannelsToOpen: []int{0}, // mapChannel adds 1 -> looks up key 1
		StartSprayTime: start,
		EndSprayTime:   end,
	})

	require.Equal(t, 2, c.queue.Len())
	on := c.queue.PopMin()
	assert.Equal(t, []uint8{5}, on.Channels)
}

func TestMapChannelMissPanics(t *testing.T) {
	c := newTestCore(t, map[uint8]ChannelMapping{1: {Wired: 5}})
	assert.Panics(t, func() {
		c.mapChannel(99)
	})
}

func TestMapChannelPassthroughWhenNoMap(t *testing.T) {
	c := newTestCore(t, nil)
	assert.Equal(t, uint8(7), c.mapChannel(7))
}
