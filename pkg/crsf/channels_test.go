package crsf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTicksToMicros(t *testing.T) {
	testCases := []struct {
		ticks, us int
	}{
		{991, 1500},
		{990, 1499},
		{992, 1500},
		{993, 1500},
		{1000, 1505},
		{172, 988},
		{1811, 2011},
		{2047, 2159},
		{0, 880},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.us, TicksToMicros(tc.ticks), "ticks %d", tc.ticks)
	}
}

func TestMicrosToTicks(t *testing.T) {
	for us := 1000; us <= 2000; us++ {
		require.Equal(t, us, TicksToMicros(MicrosToTicks(us)), "us %d", us)
	}
	require.Equal(t, 0, MicrosToTicks(0))
	require.Equal(t, TickMax, MicrosToTicks(3000))
	require.Equal(t, TickCenter, MicrosToTicks(MicrosCenter))
}

func TestPackedPayloadVector(t *testing.T) {
	expected := mustHex(t, "e0031ff8c0073ef0810f7ce0031ff8c0073ef0810f7c")
	require.Equal(t, expected, PackTicks(midScaleTicks()))
	ticks, ok := UnpackTicks(expected)
	require.True(t, ok)
	require.Equal(t, midScaleTicks(), ticks)
}

func TestUnpackEveryValueEveryChannel(t *testing.T) {
	for ch := 0; ch < NumChannels; ch++ {
		for v := 0; v <= TickMax; v++ {
			ticks := midScaleTicks()
			ticks[ch] = uint16(v)
			decoded, ok := UnpackTicks(PackTicks(ticks))
			require.True(t, ok)
			if decoded != ticks {
				require.Equal(t, ticks, decoded, "channel %d value %d", ch, v)
			}
		}
	}
}

func TestUnpackChannels(t *testing.T) {
	f := NewRCChannelsFrame(AddressFlightController, mixedTicks())
	chs, ok := f.Channels()
	require.True(t, ok)
	require.Equal(t, 988, chs[0])
	require.Equal(t, 2011, chs[1])
	require.Equal(t, 1500, chs[2])
	require.Equal(t, TicksToMicros(1500), chs[3])
	require.Equal(t, TicksToMicros(300), chs[4])
}

func TestUnpackRejects(t *testing.T) {
	_, ok := UnpackChannels(make([]byte, RCChannelsPayloadSize-1))
	require.False(t, ok)
	_, ok = UnpackChannels(make([]byte, RCChannelsPayloadSize+1))
	require.False(t, ok)

	f := NewRCChannelsFrame(AddressFlightController, midScaleTicks())
	f.Type = 0x14
	_, ok = f.Channels()
	require.False(t, ok)
}
